// Package compositor implements the alpha-over pixel blend and audio
// summation the router tick applies when painting a connected input's
// frame onto an output's working buffer.
package compositor

import "github.com/patchbay/patchbay/internal/frame"

// Options controls the two points the specification leaves open: the
// off-by-one in the alpha factor, and whether audio summation wraps or
// saturates on overflow. Both default to the spec-mandated behaviour;
// the alternates exist only for operators who explicitly ask for them
// via router flags.
type Options struct {
	// CanonicalAlpha substitutes factor = 255-A_s for the default
	// 256-A_s. Off by default: the default reproduces existing content
	// bit-for-bit, which the corrected formula would not.
	CanonicalAlpha bool

	// SaturateAudio clamps summed audio samples to the int32 range
	// instead of letting two's-complement addition wrap. Off by
	// default.
	SaturateAudio bool
}

// Over composites src onto dst in place: alpha-over video blend plus
// additive audio summation, per the tick loop's per-input, per-output
// step. src is never modified.
func Over(dst, src *frame.Frame, opts Options) {
	overVideo(dst, src, opts.CanonicalAlpha)
	sumAudio(dst, src, opts.SaturateAudio)
}

// overVideo applies the pre-multiplied-alpha "over" operator to every
// BGRA pixel quad. The source is pre-multiplied, so the additive term
// is src[i+c] unscaled by A_s; only the destination's contribution is
// attenuated by factor.
func overVideo(dst, src *frame.Frame, canonicalAlpha bool) {
	for i := 0; i < frame.VideoPlaneSize; i += frame.BytesPerPixel {
		srcAlpha := src.Video[i+3]

		var factor int
		if canonicalAlpha {
			factor = 255 - int(srcAlpha)
		} else {
			factor = 256 - int(srcAlpha)
		}

		for c := 0; c < frame.BytesPerPixel; c++ {
			s := int(src.Video[i+c])
			d := int(dst.Video[i+c])
			dst.Video[i+c] = clampU8(s + (d*factor)/256)
		}
	}
}

func clampU8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// sumAudio adds src's interleaved L,R samples into dst's, wrapping on
// overflow by default (Go's int32 addition already wraps; saturating
// mode is the only case needing explicit range checks).
func sumAudio(dst, src *frame.Frame, saturate bool) {
	for i := 0; i < frame.AudioSampleCount; i++ {
		if saturate {
			dst.Audio[i] = saturatingAdd(dst.Audio[i], src.Audio[i])
		} else {
			dst.Audio[i] = dst.Audio[i] + src.Audio[i]
		}
	}
}

func saturatingAdd(a, b int32) int32 {
	sum := int64(a) + int64(b)
	if sum > int64(maxInt32) {
		return maxInt32
	}
	if sum < int64(minInt32) {
		return minInt32
	}
	return int32(sum)
}

const (
	maxInt32 = int32(1<<31 - 1)
	minInt32 = int32(-1 << 31)
)
