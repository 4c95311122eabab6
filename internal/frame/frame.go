// Package frame defines the fixed-size video+audio record exchanged
// between producer and consumer workers through a shared-memory triple
// buffer. The layout is binary-stable and position-independent: no
// pointers, only byte offsets within the record itself, so the same bytes
// are valid regardless of which process mapped them.
package frame

const (
	// VideoWidth and VideoHeight are the fixed frame dimensions.
	VideoWidth  = 1920
	VideoHeight = 1080

	// BytesPerPixel is 4 for BGRA.
	BytesPerPixel = 4

	// VideoPlaneSize is the size in bytes of the video plane.
	VideoPlaneSize = VideoWidth * VideoHeight * BytesPerPixel

	// FPS is the fixed tick rate.
	FPS = 25

	// AudioSampleRate is 48 kHz.
	AudioSampleRate = 48000

	// AudioChannels is stereo.
	AudioChannels = 2

	// AudioSamplesPerChannel is the number of samples per channel carried
	// by a single frame: one tick's worth at 25 fps / 48 kHz.
	AudioSamplesPerChannel = AudioSampleRate / FPS

	// AudioSampleCount is the total interleaved L,R,L,R,... sample count.
	AudioSampleCount = AudioSamplesPerChannel * AudioChannels

	// Size is the total byte size of a Frame, used to size shared regions.
	Size = VideoPlaneSize + AudioSampleCount*4
)

// Frame is a fixed-size video+audio record. Video is BGRA, little-endian
// byte order per pixel, row-major. Audio is interleaved L,R signed 32-bit
// samples, native byte order. Frame must remain trivially copyable: no
// slices, no pointers, only fixed-size arrays, so instances addressed by
// offset inside a shared region behave identically to a local value.
type Frame struct {
	Video [VideoPlaneSize]byte
	Audio [AudioSampleCount]int32
}

// Clear zeros both planes.
func (f *Frame) Clear() {
	clear(f.Video[:])
	clear(f.Audio[:])
}

// PixelOffset returns the byte offset of pixel (x, y) within Video.
func PixelOffset(x, y int) int {
	return (y*VideoWidth + x) * BytesPerPixel
}
