package core

import (
	"math"
	"reflect"
)

// Stamp is the set of types usable as element time stamps.
// Offsets such as delays and periods are expressed in the same type.
type Stamp interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Dispatch is one timestamped element of a stream
type Dispatch[S Stamp, V any] struct {
	Stamp S
	Value V
}

// NewDispatch creates a dispatch
func NewDispatch[S Stamp, V any](stamp S, value V) Dispatch[S, V] {
	return Dispatch[S, V]{Stamp: stamp, Value: value}
}

// CaptureRange is a window of stamps; both ends are inclusive
type CaptureRange[S Stamp] struct {
	Lower S
	Upper S
}

// Valid reports whether the range is well ordered
func (r CaptureRange[S]) Valid() bool {
	return r.Lower <= r.Upper
}

// Contains reports whether s lies within the range
func (r CaptureRange[S]) Contains(s S) bool {
	return r.Lower <= s && s <= r.Upper
}

// MinStamp returns the smallest representable value of S
func MinStamp[S Stamp]() S {
	switch reflect.TypeFor[S]().Kind() {
	case reflect.Int8:
		v := int64(math.MinInt8)
		return S(v)
	case reflect.Int16:
		v := int64(math.MinInt16)
		return S(v)
	case reflect.Int32:
		v := int64(math.MinInt32)
		return S(v)
	case reflect.Float32:
		v := -math.MaxFloat32
		return S(v)
	case reflect.Float64:
		return S(math.Inf(-1))
	default:
		// int and int64 share the 64 bit range on supported platforms
		v := int64(math.MinInt64)
		return S(v)
	}
}

// MaxStamp returns the largest representable value of S
func MaxStamp[S Stamp]() S {
	switch reflect.TypeFor[S]().Kind() {
	case reflect.Int8:
		v := int64(math.MaxInt8)
		return S(v)
	case reflect.Int16:
		v := int64(math.MaxInt16)
		return S(v)
	case reflect.Int32:
		v := int64(math.MaxInt32)
		return S(v)
	case reflect.Float32:
		v := math.MaxFloat32
		return S(v)
	case reflect.Float64:
		return S(math.Inf(1))
	default:
		v := int64(math.MaxInt64)
		return S(v)
	}
}
