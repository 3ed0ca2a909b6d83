package value

import (
	"bytes"
	"reflect"
)

// Equal reports whether a and b are the same field value.
//
// Values are compared by canonical encoding, so numeric spellings of the same
// quantity are equal and map key order never matters. Values that cannot be
// canonically encoded (NaN, functions, channels) fall back to reflect.DeepEqual.
func Equal(a, b any) bool {
	ca, errA := MarshalCanonical(a)
	cb, errB := MarshalCanonical(b)
	if errA == nil && errB == nil {
		return bytes.Equal(ca, cb)
	}
	if errA != nil && errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return false
}
