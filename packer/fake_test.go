package packer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/filter"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/linker"
	"github.com/arloliu/xpack/stub"
)

const testListing = `
name: test-loader
externs: [payload_size]
fragments:
  - name: ENTRY
    size: 8
    data: "eb"
    relocs: [{offset: 2, type: abs16, symbol: payload_size}]
  - name: HEAD
    size: 32
    data: "58504b21"
  - name: UNFILTER
    size: 64
    fill: 0x90
  - name: TAIL
    size: 4
    data: "c3"
`

const (
	testLoaderSize         = 8 + 32 + 4
	testFilteredLoaderSize = testLoaderSize + 64
)

// fakePacker lays out loader then payload and accepts any input.
type fakePacker struct {
	*Base
	t       *testing.T
	blob    []byte
	methods []format.Method
	filters []format.Filter
	builds  int
}

func newFake(t *testing.T, data []byte, opts ...Option) *fakePacker {
	t.Helper()

	blob, err := stub.Compile([]byte(testListing))
	require.NoError(t, err)
	o, err := NewOptions(opts...)
	require.NoError(t, err)

	return &fakePacker{
		Base:    NewBase(format.ExeDOSCOM, MemoryInput("test.com", data), o),
		t:       t,
		blob:    blob,
		methods: []format.Method{format.MethodNRV2BLE16, format.MethodNRV2ELE16},
		filters: []format.Filter{format.FilterCT16E8, format.FilterCT16E9},
	}
}

func (f *fakePacker) FullName() string { return "test-loader" }

func (f *fakePacker) Methods(format.Method, int) []format.Method { return f.methods }

func (f *fakePacker) Filters() []format.Filter { return f.filters }

func (f *fakePacker) CanPack() (bool, error) {
	if err := f.LoadInput(); err != nil {
		return false, err
	}

	return true, f.Accept()
}

func (f *fakePacker) BuildLoader(ft *filter.Filter) error {
	f.builds++
	if err := f.InitLoader(f.blob); err != nil {
		return err
	}
	l := f.Linker()
	if err := l.Add("ENTRY,HEAD"); err != nil {
		return err
	}
	if ft.ID != format.FilterNoop {
		if err := l.Add("UNFILTER"); err != nil {
			return err
		}
	}

	return l.Add("TAIL")
}

func (f *fakePacker) PatchLoader(out OutputFile, l *linker.Linker, _ int) error {
	if err := l.Define("payload_size", int64(f.PH.CLen)); err != nil {
		return err
	}
	if err := l.Relocate(); err != nil {
		return err
	}
	loader, err := l.Loader()
	if err != nil {
		return err
	}
	if _, err := f.PH.PackHeader().Patch(loader); err != nil {
		return err
	}

	return f.WriteOutput(out, loader, f.Obuf)
}

func (f *fakePacker) Pack(out OutputFile) error {
	f.PH.ULen = f.FileSize
	if err := f.CompressWithFilters(f, 32, 0); err != nil {
		return err
	}
	if err := f.PatchLoader(out, f.Linker(), f.Filter.Stub16Calls()); err != nil {
		return err
	}
	if err := f.VerifyOverlappingDecompression(); err != nil {
		return err
	}

	return f.CheckFinalCompressionRatio(out)
}

func (f *fakePacker) CanUnpack() (bool, error) {
	if _, _, err := f.ReadPackHeader(64); err != nil {
		return false, nil
	}

	return true, f.Accept()
}

func (f *fakePacker) unpack() ([]byte, error) {
	return f.DecompressPayload(f.Ibuf[len(f.Ibuf)-f.PH.CLen:])
}

func (f *fakePacker) Unpack(out OutputFile) error {
	data, err := f.unpack()
	if err != nil {
		return err
	}

	return f.WriteOutput(out, data)
}

func (f *fakePacker) Test() error {
	_, err := f.unpack()
	return err
}

// codeLike returns n bytes of near calls to one absolute target. The call
// filters turn every operand into the same value.
func codeLike(n int) []byte {
	buf := make([]byte, n)
	for i := 0; i+8 <= n; i += 8 {
		copy(buf[i:], []byte{0x55, 0x8b, 0xec, 0xe8, 0, 0, 0x5d, 0xc3})
		rel := 0x400 - (i + 4)
		buf[i+4] = byte(rel)
		buf[i+5] = byte(rel >> 8)
	}

	return buf
}

func randomBytes(n int, seed int64) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)

	return buf
}
