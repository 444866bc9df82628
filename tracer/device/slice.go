package device

import (
	"reflect"
	"unsafe"
)

// Bytes returns a byte view of the backing array of a slice of fixed-size,
// pointer-free values. Empty slices yield nil. It panics if data is not a
// slice.
func Bytes(data interface{}) []byte {
	reflVal := reflect.ValueOf(data)
	if reflVal.Kind() != reflect.Slice {
		panic("device.Bytes: this function only supports slices")
	}

	sliceElemCount := reflVal.Len()
	if sliceElemCount == 0 {
		return nil
	}

	size := sliceElemCount * int(reflVal.Type().Elem().Size())
	return unsafe.Slice((*byte)(unsafe.Pointer(reflVal.Pointer())), size)
}

// View reinterprets a byte slice as a slice of T. Trailing bytes that do
// not fill a whole element are ignored.
func View[T any](data []byte) []T {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if len(data) < elemSize || elemSize == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/elemSize)
}
