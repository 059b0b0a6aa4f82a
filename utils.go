package vkr

import (
	"unsafe"
)

var end = "\x00"
var endChar byte = '\x00'

// ToBytes will take an unsafe.Pointer and length in bytes and convert it
// to a byte slice
func ToBytes(ptr unsafe.Pointer, lenInBytes int) []byte {
	const m = 0x7fffffff
	return (*[m]byte)(ptr)[:lenInBytes]
}

// sliceUint32 reinterprets a byte slice as uint32 words, as required for
// SPIR-V code. The byte length must be a multiple of four.
func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff / 4
	return (*[m]uint32)(unsafe.Pointer(&data[0]))[:len(data)/4]
}

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}
