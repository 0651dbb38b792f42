package stub

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/linker"
)

func TestDOS16SYS(t *testing.T) {
	blob, err := DOS16SYS()
	require.NoError(t, err)

	again, err := DOS16SYS()
	require.NoError(t, err)
	require.Equal(t, blob, again)

	obj, err := linker.Unmarshal(blob)
	require.NoError(t, err)
	require.Equal(t, "i086-dos16.sys", obj.Name)
	require.Len(t, obj.Sections, 32)
	require.ElementsMatch(t, []string{
		"attribute", "interrupt", "original_strategy", "calltrick_calls",
		"copy_source", "copy_destination", "neg_e_len", "NRV2B160",
	}, obj.Externs())

	sizes := make(map[string]int, len(obj.Sections))
	for _, s := range obj.Sections {
		sizes[s.Name] = len(s.Data)
	}
	require.Equal(t, 22, sizes["UPX1HEAD"])

	entry := 0
	for _, name := range []string{"SYSMAIN1", "SYSI0861", "SYSMAIN2", "SYSSBBBP", "SYSCALLT", "SYSMAIN3", "UPX1HEAD"} {
		entry += sizes[name]
	}
	require.Less(t, entry, 128)
}

func TestDOS16SYSHeaderSlot(t *testing.T) {
	blob, err := DOS16SYS()
	require.NoError(t, err)
	obj, err := linker.Unmarshal(blob)
	require.NoError(t, err)

	for _, s := range obj.Sections {
		if s.Name == "UPX1HEAD" {
			require.True(t, bytes.HasPrefix(s.Data, []byte("XPK!")))
			require.Equal(t, make([]byte, 18), s.Data[4:])

			return
		}
	}
	t.Fatal("UPX1HEAD not found")
}

func TestDOS16SYSLinks(t *testing.T) {
	blob, err := DOS16SYS()
	require.NoError(t, err)

	l, err := linker.New()
	require.NoError(t, err)
	require.NoError(t, l.Register(blob))
	require.NoError(t, l.Add(
		"SYSMAIN1", "SYSI2861", "SYSMAIN2", "SYSMAIN3,UPX1HEAD,SYSCUTPO,NRV2B160,NRVDDONE,NRVDECO1",
		"NRVLED00", "NRVDECO2", "SYSMAIN5", "SYSI2862", "SYSJUMP1",
	))

	for name, v := range map[string]int64{
		"attribute": 0x8000, "interrupt": 0x0123, "original_strategy": 0x0456,
		"copy_source": 900, "copy_destination": 2100, "neg_e_len": -53, "NRV2B160": 2049,
	} {
		require.NoError(t, l.Define(name, v))
	}
	require.NoError(t, l.Relocate())

	code, err := l.Loader()
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0x00, 0x80, 0x0a, 0x00, 0x23, 0x01}, code[:10])

	cut, err := l.SectionStart("SYSCUTPO")
	require.NoError(t, err)
	require.Equal(t, 16+2+12+8+22, cut)
	require.Equal(t, []byte{0x81, 0xc6, 0xcb, 0xff}, code[cut:cut+4])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
	}{
		{"bad yaml", "fragments: [\n"},
		{"bad hex", "name: x\nfragments:\n  - {name: A, size: 2, data: zz}\n"},
		{"data exceeds size", "name: x\nfragments:\n  - {name: A, size: 1, data: \"0102\"}\n"},
		{"bad reloc type", "name: x\nfragments:\n  - name: A\n    size: 2\n    relocs: [{offset: 0, type: abs64, symbol: A}]\n"},
		{"reloc past end", "name: x\nfragments:\n  - name: A\n    size: 2\n    relocs: [{offset: 1, type: abs16, symbol: A}]\n"},
		{"duplicate fragment", "name: x\nfragments:\n  - {name: A, size: 1}\n  - {name: A, size: 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.listing))
			require.ErrorIs(t, err, errs.ErrInvalidBlob)
		})
	}
}

func TestCompileFill(t *testing.T) {
	src := "name: x\nexterns: [e]\nfragments:\n  - name: A\n    size: 5\n    data: \"c3\"\n    fill: 0x90\n    labels: [{name: end, offset: 5}]\n"
	l, err := Parse([]byte(src))
	require.NoError(t, err)

	obj, err := l.Object()
	require.NoError(t, err)
	require.Equal(t, []byte{0xc3, 0x90, 0x90, 0x90, 0x90}, obj.Sections[0].Data)
	require.Equal(t, []linker.Symbol{{Name: "e"}, {Name: "end", Section: "A", Offset: 5}}, obj.Symbols)
}
