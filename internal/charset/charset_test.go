package charset

import "testing"

func TestConvert_CheckPassesThroughValidUTF8(t *testing.T) {
	c := New(nil, true, false)
	got := c.Convert([]byte("héllo"))
	if got != "héllo" {
		t.Errorf("got %q", got)
	}
}

func TestConvert_CandidateList(t *testing.T) {
	c := New([]string{"ISO-8859-1"}, false, false)
	// 0xE9 in ISO-8859-1 is 'é'.
	got := c.Convert([]byte{0x68, 0xE9, 0x6C, 0x6C, 0x6F})
	if got != "héllo" {
		t.Errorf("got %q", got)
	}
}

func TestConvert_EmptyOnNoMatch(t *testing.T) {
	c := New(nil, false, false)
	got := c.Convert([]byte{0xFF, 0xFE, 0x00, 0x01})
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestConvert_FallbackNeverEmpty(t *testing.T) {
	c := New(nil, false, true)
	got := c.Convert([]byte{0x41, 0x00, 0x42})
	if got == "" {
		t.Fatalf("fallback should never be empty when enabled and input non-empty")
	}
}

func TestConvert_EmptyInput(t *testing.T) {
	c := New(nil, true, true)
	if got := c.Convert(nil); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestConvertHint_UTF16LE(t *testing.T) {
	c := New(nil, false, false)
	// "hi" in UTF-16LE, no BOM.
	got := c.ConvertHint([]byte{0x68, 0x00, 0x69, 0x00}, "UTF-16LE")
	if got != "hi" {
		t.Errorf("got %q", got)
	}
}

func TestLookup_UnknownNameSkipped(t *testing.T) {
	c := New([]string{"NOT-A-REAL-CHARSET", "ISO-8859-1"}, false, false)
	if len(c.candidates) != 1 {
		t.Fatalf("expected unknown name to be skipped, got %d candidates", len(c.candidates))
	}
}
