package frame

import "testing"

func TestClear(t *testing.T) {
	var f Frame
	for i := range f.Video {
		f.Video[i] = 0xFF
	}
	for i := range f.Audio {
		f.Audio[i] = 1 << 20
	}

	f.Clear()

	for i, b := range f.Video {
		if b != 0 {
			t.Fatalf("video byte %d not cleared: %d", i, b)
		}
	}
	for i, s := range f.Audio {
		if s != 0 {
			t.Fatalf("audio sample %d not cleared: %d", i, s)
		}
	}
}

func TestPixelOffset(t *testing.T) {
	if got := PixelOffset(0, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	want := (1*VideoWidth + 2) * BytesPerPixel
	if got := PixelOffset(2, 1); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestSizeMatchesPlanes(t *testing.T) {
	if Size != VideoPlaneSize+AudioSampleCount*4 {
		t.Fatalf("Size out of sync with plane sizes")
	}
	if AudioSampleCount != AudioSamplesPerChannel*AudioChannels {
		t.Fatalf("AudioSampleCount out of sync")
	}
}
