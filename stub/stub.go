// Package stub holds the loader listings and compiles them into linker blobs.
//
// A listing is a YAML document naming every fragment of one loader family with
// its size, leading bytes, relocations and labels, plus the externs a packer
// has to define. Listings are embedded in the binary and compiled on first use.
package stub

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/linker"
)

//go:embed i086-dos16.sys.yaml
var dos16SysListing []byte

// Listing is the source form of a loader blob.
type Listing struct {
	Name      string     `yaml:"name"`
	Externs   []string   `yaml:"externs"`
	Fragments []Fragment `yaml:"fragments"`
}

// Fragment describes one loader fragment. Data is a hex prefix; the remaining
// Size-len(Data) bytes are set to Fill.
type Fragment struct {
	Name   string  `yaml:"name"`
	Size   int     `yaml:"size"`
	Data   string  `yaml:"data"`
	Fill   uint8   `yaml:"fill"`
	Relocs []Reloc `yaml:"relocs"`
	Labels []Label `yaml:"labels"`
}

// Reloc is a relocation in listing form; Type is a linker.RelocType name.
type Reloc struct {
	Offset uint32 `yaml:"offset"`
	Type   string `yaml:"type"`
	Symbol string `yaml:"symbol"`
	Addend int64  `yaml:"addend"`
}

// Label names an offset inside its fragment.
type Label struct {
	Name   string `yaml:"name"`
	Offset uint32 `yaml:"offset"`
}

// Parse decodes a YAML listing.
func Parse(src []byte) (*Listing, error) {
	var l Listing
	if err := yaml.Unmarshal(src, &l); err != nil {
		return nil, fmt.Errorf("%w: parse listing: %w", errs.ErrInvalidBlob, err)
	}

	return &l, nil
}

// Object converts the listing into a linker object.
func (l *Listing) Object() (*linker.Object, error) {
	obj := &linker.Object{Name: l.Name}
	for _, name := range l.Externs {
		obj.Symbols = append(obj.Symbols, linker.Symbol{Name: name})
	}

	for _, f := range l.Fragments {
		prefix, err := hex.DecodeString(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: data: %w", errs.ErrInvalidBlob, f.Name, err)
		}
		if len(prefix) > f.Size {
			return nil, fmt.Errorf("%w: %s: %d data bytes exceed size %d", errs.ErrInvalidBlob, f.Name, len(prefix), f.Size)
		}

		data := make([]byte, f.Size)
		copy(data, prefix)
		for i := len(prefix); i < len(data); i++ {
			data[i] = f.Fill
		}

		s := linker.Section{Name: f.Name, Data: data}
		for _, r := range f.Relocs {
			typ, ok := linker.ParseRelocType(r.Type)
			if !ok {
				return nil, fmt.Errorf("%w: %s: relocation type %q", errs.ErrInvalidBlob, f.Name, r.Type)
			}
			s.Relocs = append(s.Relocs, linker.Reloc{Offset: r.Offset, Type: typ, Symbol: r.Symbol, Addend: r.Addend})
		}
		obj.Sections = append(obj.Sections, s)

		for _, lb := range f.Labels {
			obj.Symbols = append(obj.Symbols, linker.Symbol{Name: lb.Name, Section: f.Name, Offset: lb.Offset})
		}
	}

	return obj, obj.Validate()
}

// Compile converts the listing into a loader blob.
func (l *Listing) Compile() ([]byte, error) {
	obj, err := l.Object()
	if err != nil {
		return nil, err
	}

	return obj.Marshal()
}

// Compile parses and compiles a YAML listing.
func Compile(src []byte) ([]byte, error) {
	l, err := Parse(src)
	if err != nil {
		return nil, err
	}

	return l.Compile()
}

var dos16Sys = sync.OnceValues(func() ([]byte, error) {
	return Compile(dos16SysListing)
})

// DOS16SYS returns the loader blob of the dos/sys packer.
func DOS16SYS() ([]byte, error) {
	return dos16Sys()
}
