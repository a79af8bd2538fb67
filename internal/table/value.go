// Package table implements the shared engine behind the item and store
// tables: a virtualized window over a filtered and sorted row sequence,
// click-driven multi-column sorting and selection with a capacity hint.
//
// A Table is parameterized over its row type and over the view handle its
// Variant materializes for each row. View handles are memoized per row id
// for the lifetime of the Table.
package table

import (
	"cmp"
	"strconv"
)

// Kind distinguishes the dynamic type of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNumber
	KindString
)

// Value is a sortable field value. The zero Value is undefined.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Undefined is a missing value. It sorts after every defined value in both
// directions.
var Undefined = Value{}

// Num returns a numeric Value.
func Num(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Int returns a numeric Value from an integer.
func Int(n int64) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

// Str returns a string Value.
func Str(s string) Value {
	return Value{kind: KindString, str: s}
}

// OptNum returns Num(*p), or Undefined when p is nil.
func OptNum[T int | int64 | float64](p *T) Value {
	if p == nil {
		return Undefined
	}
	return Num(float64(*p))
}

// OptStr returns Str(s), or Undefined when s is empty.
func OptStr(s string) Value {
	if s == "" {
		return Undefined
	}
	return Str(s)
}

// Kind returns the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v holds no value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Float returns the numeric content of v.
func (v Value) Float() float64 { return v.num }

// Text returns the string content of v.
func (v Value) Text() string { return v.str }

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// compareDefined orders two defined values ascending. Numbers order before
// strings when kinds differ.
func compareDefined(a, b Value, compareStrings func(a, b string) int) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	if a.kind == KindString {
		return compareStrings(a.str, b.str)
	}
	return cmp.Compare(a.num, b.num)
}
