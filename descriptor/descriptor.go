// Package descriptor provides the self-describing typed view over in-memory
// values that the data transfer surface hands to the edit engine. A
// Descriptor is a transient, stack-scoped tag: category, element byte width,
// a reference to the caller's storage and an element count. Consumers must
// check the tag before touching Data.
package descriptor

import "fmt"

// Category classifies the payload of a [Descriptor].
type Category int

const (
	Integer Category = iota
	Real
	Complex
	Character
	Logical
	Derived
)

func (c Category) String() string {
	switch c {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Complex:
		return "COMPLEX"
	case Character:
		return "CHARACTER"
	case Logical:
		return "LOGICAL"
	case Derived:
		return "TYPE"
	}
	return "Category(" + fmt.Sprint(int(c)) + ")"
}

// Descriptor is a typed view over caller-owned storage. Data holds a pointer
// to the scalar (or slice for arrays) so that input transfers can store
// through it:
//
//	Integer:   *int8, *int16, *int32, *int64 or slices thereof
//	Real:      *float32, *float64 or slices thereof
//	Complex:   *complex64, *complex128 or slices thereof
//	Character: *string for input, string for output, or []byte
//	Logical:   *bool or []bool
//	Derived:   any user value; TypeName routes defined I/O
//
// Kind is the element byte width (for Character it is the per-character
// width, with Elems carrying the length in characters).
type Descriptor struct {
	Cat      Category
	Kind     int
	Elems    int
	Data     any
	TypeName string // derived type name, empty otherwise
}

// Establish builds a scalar view. It is the analogue of laying out a value
// as a rank-0 array view.
func Establish(cat Category, kind int, data any) Descriptor {
	return Descriptor{Cat: cat, Kind: kind, Elems: 1, Data: data}
}

// EstablishArray builds a rank-1 view over elems elements.
func EstablishArray(cat Category, kind int, data any, elems int) Descriptor {
	return Descriptor{Cat: cat, Kind: kind, Elems: elems, Data: data}
}

// EstablishDerived builds a view over a derived-type value. Defined I/O
// procedures are looked up by typeName.
func EstablishDerived(typeName string, data any) Descriptor {
	return Descriptor{Cat: Derived, Elems: 1, Data: data, TypeName: typeName}
}

// SizeInBytes returns the total payload size the view describes. Complex
// elements occupy two reals of width Kind.
func (d Descriptor) SizeInBytes() int {
	w := d.Kind
	if d.Cat == Complex {
		w *= 2
	}
	return w * d.Elems
}
