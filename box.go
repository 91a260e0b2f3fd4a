// Package bmff holds the box-level primitives of the demuxer: box types and
// paths, the transactional byte source, format probing, an in-memory box
// Reader, a top-level Scanner, sample table iterators and a box Writer.
package bmff

import (
	"fmt"
	"strings"
)

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// NewBoxType creates a BoxType from a 4-byte string.
// Tags such as "\xa9nam" are given with the raw 0xA9 byte.
func NewBoxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Known box types.
var (
	TypeFtyp = BoxType{'f', 't', 'y', 'p'}
	TypeMoov = BoxType{'m', 'o', 'o', 'v'}
	TypeMvhd = BoxType{'m', 'v', 'h', 'd'}
	TypeTrak = BoxType{'t', 'r', 'a', 'k'}
	TypeTkhd = BoxType{'t', 'k', 'h', 'd'}
	TypeTref = BoxType{'t', 'r', 'e', 'f'}
	TypeChap = BoxType{'c', 'h', 'a', 'p'}
	TypeEdts = BoxType{'e', 'd', 't', 's'}
	TypeMdia = BoxType{'m', 'd', 'i', 'a'}
	TypeMdhd = BoxType{'m', 'd', 'h', 'd'}
	TypeHdlr = BoxType{'h', 'd', 'l', 'r'}
	TypeMinf = BoxType{'m', 'i', 'n', 'f'}
	TypeSmhd = BoxType{'s', 'm', 'h', 'd'}
	TypeVmhd = BoxType{'v', 'm', 'h', 'd'}
	TypeDinf = BoxType{'d', 'i', 'n', 'f'}
	TypeDref = BoxType{'d', 'r', 'e', 'f'}
	TypeStbl = BoxType{'s', 't', 'b', 'l'}
	TypeStsd = BoxType{'s', 't', 's', 'd'}
	TypeStts = BoxType{'s', 't', 't', 's'}
	TypeStsc = BoxType{'s', 't', 's', 'c'}
	TypeStsz = BoxType{'s', 't', 's', 'z'}
	TypeStco = BoxType{'s', 't', 'c', 'o'}
	TypeCo64 = BoxType{'c', 'o', '6', '4'}
	TypeStss = BoxType{'s', 't', 's', 's'}
	// Data boxes
	TypeMdat = BoxType{'m', 'd', 'a', 't'}
	TypeFree = BoxType{'f', 'r', 'e', 'e'}
	TypeSkip = BoxType{'s', 'k', 'i', 'p'}
	// Metadata boxes
	TypeUdta = BoxType{'u', 'd', 't', 'a'}
	TypeMeta = BoxType{'m', 'e', 't', 'a'}
	TypeIlst = BoxType{'i', 'l', 's', 't'}
	TypeData = BoxType{'d', 'a', 't', 'a'}
	// Sample entry boxes
	TypeMp4a = BoxType{'m', 'p', '4', 'a'}
	TypeEsds = BoxType{'e', 's', 'd', 's'}
	TypeAlac = BoxType{'a', 'l', 'a', 'c'}
	TypeWave = BoxType{'w', 'a', 'v', 'e'}
	TypeEnda = BoxType{'e', 'n', 'd', 'a'}
	TypeSowt = BoxType{'s', 'o', 'w', 't'}
	TypeTwos = BoxType{'t', 'w', 'o', 's'}
	TypeAvc1 = BoxType{'a', 'v', 'c', '1'}
)

// IsFullBox returns true if the box type has version and flags fields.
func IsFullBox(t BoxType) bool {
	switch t {
	case TypeMvhd, TypeTkhd, TypeMdhd, TypeHdlr,
		TypeVmhd, TypeSmhd, TypeDref, TypeStsd,
		TypeStts, TypeStsc, TypeStsz, TypeStco,
		TypeCo64, TypeStss, TypeMeta, TypeEsds:
		return true
	}
	return false
}

// IsContainerBox returns true if the box type is a container that holds child boxes.
// meta is a full box: its children start 4 bytes into the data.
func IsContainerBox(t BoxType) bool {
	switch t {
	case TypeMoov, TypeTrak, TypeEdts, TypeMdia,
		TypeMinf, TypeDinf, TypeStbl, TypeUdta,
		TypeMeta, TypeIlst, TypeTref, TypeWave:
		return true
	}
	return false
}

// Path is an ordered ancestor sequence of box types, outermost first.
type Path []BoxType

// ParsePath parses a dot-joined path such as "moov.trak.mdia.hdlr".
// Every element must be exactly four bytes.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		if len(part) != 4 {
			return nil, fmt.Errorf("bmff: path element %q in %q is not 4 bytes", part, s)
		}
		p[i] = NewBoxType(part)
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on a malformed path.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	var sb strings.Builder
	for i, t := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.Write(t[:])
	}
	return sb.String()
}
