package malgo

import "unsafe"

const bytesPerFloat = 4

// float32View reinterprets a miniaudio F32 byte buffer as samples. The
// buffer is owned by miniaudio and only valid during the callback.
func float32View(b []byte) []float32 {
	if len(b) < bytesPerFloat {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/bytesPerFloat)
}
