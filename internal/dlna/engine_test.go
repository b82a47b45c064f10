package dlna

import "testing"

func TestMatchImageProfile_JPEGMedium(t *testing.T) {
	p, ok := MatchImageProfile(Descriptor{Container: "jpeg", Width: 1024, Height: 768})
	if !ok {
		t.Fatalf("expected a match")
	}
	if p.Name != "JPEG_MED" || p.MIME != "image/jpeg" {
		t.Errorf("got %+v", p)
	}
}

func TestMatchImageProfile_JPEGSmallWinsFirst(t *testing.T) {
	p, ok := MatchImageProfile(Descriptor{Container: "jpeg", Width: 320, Height: 240})
	if !ok || p.Name != "JPEG_SM" {
		t.Fatalf("expected JPEG_SM, got %+v ok=%v", p, ok)
	}
}

func TestMatchImageProfile_NoContainer(t *testing.T) {
	_, ok := MatchImageProfile(Descriptor{Container: "gif", Width: 100, Height: 100})
	if ok {
		t.Fatalf("expected no match for unknown container")
	}
}

func TestMatchAudioProfile_MP3(t *testing.T) {
	p, ok := MatchAudioProfile(Descriptor{
		Container: "mp3", SamplingRate: 44100, Bitrate: 320000, Channels: 2,
	})
	if !ok || p.Name != "MP3" {
		t.Fatalf("expected MP3, got %+v ok=%v", p, ok)
	}
}

func TestMatchAudioProfile_MP3XFallback(t *testing.T) {
	p, ok := MatchAudioProfile(Descriptor{
		Container: "mp3", SamplingRate: 22050, Bitrate: 128000, Channels: 2,
	})
	if !ok || p.Name != "MP3X" {
		t.Fatalf("expected MP3X, got %+v ok=%v", p, ok)
	}
}

func TestMatchAudioProfile_UnmatchedRate(t *testing.T) {
	_, ok := MatchAudioProfile(Descriptor{Container: "mp3", SamplingRate: 8000, Bitrate: 320000, Channels: 2})
	if ok {
		t.Fatalf("expected no match for out-of-table sample rate")
	}
}

func TestSplitCodec(t *testing.T) {
	base, profile, level := SplitCodec("h264-pbaseline-l3.1")
	if base != "h264" || profile != "baseline" || level != "3.1" {
		t.Errorf("got base=%q profile=%q level=%q", base, profile, level)
	}
}

func TestSplitCodec_NoTags(t *testing.T) {
	base, profile, level := SplitCodec("mpeg4aac-lc")
	if base != "mpeg4aac-lc" || profile != "" || level != "" {
		t.Errorf("got base=%q profile=%q level=%q", base, profile, level)
	}
}

func TestMatchVideoProfile_MPEGTSPacketSizeFirst(t *testing.T) {
	_, ok := MatchVideoProfile(Descriptor{
		Container: "mpegts", PacketSize: 999, Width: 720, Height: 576, Profile: "main",
	})
	if ok {
		t.Fatalf("packet size mismatch must short-circuit before stream predicates")
	}
}

func TestMatchVideoProfile_MP4Baseline(t *testing.T) {
	p, ok := MatchVideoProfile(Descriptor{Container: "mp4", Width: 176, Height: 144, Profile: "baseline"})
	if !ok || p.Name != "AVC_MP4_MP_SD" {
		t.Fatalf("expected AVC_MP4_MP_SD, got %+v ok=%v", p, ok)
	}
}

func TestFramerateEpsilon(t *testing.T) {
	rule := VideoRule{Framerates: []float64{29.97}}
	if !rule.matchesFramerate(Descriptor{Framerate: 29.95}) {
		t.Errorf("expected epsilon tolerance to absorb 0.02 delta")
	}
	if rule.matchesFramerate(Descriptor{Framerate: 29.5}) {
		t.Errorf("expected framerate outside epsilon to fail")
	}
}
