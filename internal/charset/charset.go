// Package charset implements the try-in-order byte-to-UTF-8 decoder
// described in spec.md §4.1, over golang.org/x/text/encoding.
package charset

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Converter tries a list of candidate source encodings, in registration
// order, to decode raw tag bytes into UTF-8. It never returns an error: the
// contract (spec.md §4.1) is "output is valid UTF-8 or an empty string".
type Converter struct {
	check      bool
	fallback   bool
	candidates []encoding.Encoding
}

// New builds a Converter for the named encodings (e.g. "ISO-8859-1",
// "WINDOWS-1252", "UTF-16LE"). Unknown names are skipped with no error —
// a caller that mistypes a charset name degrades to fewer candidates, not
// a failed scan.
func New(names []string, useCheck, useFallback bool) *Converter {
	c := &Converter{check: useCheck, fallback: useFallback}
	for _, name := range names {
		if enc, ok := lookup(name); ok {
			c.candidates = append(c.candidates, enc)
		}
	}
	return c
}

// Convert implements spec.md §4.1's three-step policy:
//  1. If check is enabled, try decoding as if already UTF-8; return
//     unchanged on success.
//  2. Otherwise try each registered encoding in order; return the first
//     successful decode.
//  3. If all fail and fallback is enabled, decode with an irrevocable
//     replace-invalid policy; on failure, overwrite non-printable bytes
//     with '?'.
func (c *Converter) Convert(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if c.check && utf8.Valid(data) {
		return string(data)
	}
	for _, enc := range c.candidates {
		if s, err := enc.NewDecoder().String(string(data)); err == nil && utf8.ValidString(s) {
			return s
		}
	}
	if c.fallback {
		dec := unicode.UTF8.NewDecoder()
		if s, err := dec.String(string(data)); err == nil {
			return s
		}
		return replaceNonPrintable(data)
	}
	return ""
}

// ConvertHint decodes bytes using an explicit encoding hint (e.g. an ID3v2
// text-encoding byte of 0x01 means "UTF-16LE with BOM") before falling back
// to the registered candidate list.
func (c *Converter) ConvertHint(data []byte, hint string) string {
	if enc, ok := lookup(hint); ok {
		if s, err := enc.NewDecoder().String(string(data)); err == nil && utf8.ValidString(s) {
			return s
		}
	}
	return c.Convert(data)
}

func replaceNonPrintable(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

func lookup(name string) (encoding.Encoding, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UTF-8", "UTF8":
		return unicode.UTF8, true
	case "UTF-16LE", "UTF16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), true
	case "UTF-16BE", "UTF16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), true
	case "UTF-16", "UTF16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), true
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return charmap.ISO8859_1, true
	case "ISO-8859-15":
		return charmap.ISO8859_15, true
	case "WINDOWS-1250", "CP1250":
		return charmap.Windows1250, true
	case "WINDOWS-1251", "CP1251":
		return charmap.Windows1251, true
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, true
	case "SHIFT_JIS", "SHIFT-JIS", "SJIS":
		return japanese.ShiftJIS, true
	case "EUC-JP":
		return japanese.EUCJP, true
	case "EUC-KR":
		return korean.EUCKR, true
	case "GBK":
		return simplifiedchinese.GBK, true
	case "GB18030":
		return simplifiedchinese.GB18030, true
	case "BIG5":
		return traditionalchinese.Big5, true
	default:
		return nil, false
	}
}
