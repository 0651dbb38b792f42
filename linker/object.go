package linker

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/arloliu/xpack/errs"
)

// RelocType selects how a relocation patches its location.
type RelocType uint8

const (
	RelocAbs8    RelocType = iota + 1 // RelocAbs8 stores S+A in one byte.
	RelocAbs16                        // RelocAbs16 stores S+A as a little-endian word.
	RelocAbs32                        // RelocAbs32 stores S+A as a little-endian dword.
	RelocRel8                         // RelocRel8 stores S+A-P in one signed byte.
	RelocRel16                        // RelocRel16 stores S+A-P as a signed little-endian word.
	RelocRel32                        // RelocRel32 stores S+A-P as a signed little-endian dword.
	RelocAbs16BE                      // RelocAbs16BE stores S+A as a big-endian word.
	RelocAbs32BE                      // RelocAbs32BE stores S+A as a big-endian dword.
)

// Width returns the number of bytes patched by t, or 0 for an unknown type.
func (t RelocType) Width() int {
	switch t {
	case RelocAbs8, RelocRel8:
		return 1
	case RelocAbs16, RelocRel16, RelocAbs16BE:
		return 2
	case RelocAbs32, RelocRel32, RelocAbs32BE:
		return 4
	default:
		return 0
	}
}

// PCRelative reports whether the location address is subtracted.
func (t RelocType) PCRelative() bool {
	return t == RelocRel8 || t == RelocRel16 || t == RelocRel32
}

func (t RelocType) String() string {
	switch t {
	case RelocAbs8:
		return "abs8"
	case RelocAbs16:
		return "abs16"
	case RelocAbs32:
		return "abs32"
	case RelocRel8:
		return "rel8"
	case RelocRel16:
		return "rel16"
	case RelocRel32:
		return "rel32"
	case RelocAbs16BE:
		return "abs16be"
	case RelocAbs32BE:
		return "abs32be"
	default:
		return "unknown"
	}
}

// ParseRelocType is the inverse of RelocType.String.
func ParseRelocType(s string) (RelocType, bool) {
	for t := RelocAbs8; t <= RelocAbs32BE; t++ {
		if t.String() == s {
			return t, true
		}
	}

	return 0, false
}

// Object is a loader blob: the fragments of one loader family and the symbols
// they reference.
type Object struct {
	Name     string    `cbor:"1,keyasint"`
	Sections []Section `cbor:"2,keyasint"`
	Symbols  []Symbol  `cbor:"3,keyasint,omitempty"`
}

// Section is one named fragment.
type Section struct {
	Name   string  `cbor:"1,keyasint"`
	Data   []byte  `cbor:"2,keyasint"`
	Relocs []Reloc `cbor:"3,keyasint,omitempty"`
}

// Reloc patches Data[Offset:] with the value of Symbol plus Addend.
type Reloc struct {
	Offset uint32    `cbor:"1,keyasint"`
	Type   RelocType `cbor:"2,keyasint"`
	Symbol string    `cbor:"3,keyasint"`
	Addend int64     `cbor:"4,keyasint,omitempty"`
}

// Symbol is a label inside a section, or an extern the packer must define
// when Section is empty.
type Symbol struct {
	Name    string `cbor:"1,keyasint"`
	Section string `cbor:"2,keyasint,omitempty"`
	Offset  uint32 `cbor:"3,keyasint,omitempty"`
}

// IsExtern reports whether s must be defined by the packer.
func (s Symbol) IsExtern() bool {
	return s.Section == ""
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("linker: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("linker: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal validates o and encodes it as a loader blob.
// The encoding is deterministic: equal objects give identical blobs.
func (o *Object) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	blob, err := encMode.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidBlob, err)
	}

	return blob, nil
}

// Unmarshal decodes and validates a loader blob.
func Unmarshal(blob []byte) (*Object, error) {
	var o Object
	if err := decMode.Unmarshal(blob, &o); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidBlob, err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &o, nil
}

// Validate checks that names are unique and that every relocation and label
// lies inside its section.
func (o *Object) Validate() error {
	sections := make(map[string]int, len(o.Sections))
	for _, s := range o.Sections {
		if s.Name == "" {
			return fmt.Errorf("%w: %s: unnamed section", errs.ErrInvalidBlob, o.Name)
		}
		if _, dup := sections[s.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate section %q", errs.ErrInvalidBlob, o.Name, s.Name)
		}
		sections[s.Name] = len(s.Data)

		for _, r := range s.Relocs {
			w := r.Type.Width()
			if w == 0 {
				return fmt.Errorf("%w: %s: relocation type %d", errs.ErrInvalidBlob, s.Name, r.Type)
			}
			if int(r.Offset)+w > len(s.Data) {
				return fmt.Errorf("%w: %s: %s relocation at %d past end %d",
					errs.ErrInvalidBlob, s.Name, r.Type, r.Offset, len(s.Data))
			}
			if r.Symbol == "" {
				return fmt.Errorf("%w: %s: relocation at %d has no symbol", errs.ErrInvalidBlob, s.Name, r.Offset)
			}
		}
	}

	symbols := make(map[string]struct{}, len(o.Symbols))
	for _, sym := range o.Symbols {
		if sym.Name == "" {
			return fmt.Errorf("%w: %s: unnamed symbol", errs.ErrInvalidBlob, o.Name)
		}
		if _, dup := symbols[sym.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate symbol %q", errs.ErrInvalidBlob, o.Name, sym.Name)
		}
		symbols[sym.Name] = struct{}{}
		if sym.IsExtern() {
			continue
		}
		size, ok := sections[sym.Section]
		if !ok {
			return fmt.Errorf("%w: %s: label %q in unknown section %q", errs.ErrInvalidBlob, o.Name, sym.Name, sym.Section)
		}
		if int(sym.Offset) > size {
			return fmt.Errorf("%w: %s: label %q at %d past end %d", errs.ErrInvalidBlob, o.Name, sym.Name, sym.Offset, size)
		}
	}

	return nil
}

// Externs returns the names of the symbols the packer must define.
func (o *Object) Externs() []string {
	var names []string
	for _, sym := range o.Symbols {
		if sym.IsExtern() {
			names = append(names, sym.Name)
		}
	}

	return names
}
