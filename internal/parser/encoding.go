package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// fallbackEncodings are tried, in order, after the configured encoding.
var fallbackEncodings = []string{"latin-1", "cp1252", "iso-8859-1"}

// aliases pins the labels we care about to byte-exact codecs. The WHATWG
// index maps latin-1 to windows-1252, which is not what files labelled
// latin-1 contain.
var aliases = map[string]encoding.Encoding{
	"latin1":      charmap.ISO8859_1,
	"iso88591":    charmap.ISO8859_1,
	"l1":          charmap.ISO8859_1,
	"cp1252":      charmap.Windows1252,
	"windows1252": charmap.Windows1252,
	"cp1251":      charmap.Windows1251,
	"windows1251": charmap.Windows1251,
	"iso885915":   charmap.ISO8859_15,
	"latin9":      charmap.ISO8859_15,
	"cp437":       charmap.CodePage437,
	"cp850":       charmap.CodePage850,
	"koi8r":       charmap.KOI8R,
}

func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func isUTF8(label string) bool {
	switch normalizeLabel(label) {
	case "utf8", "utf8sig":
		return true
	}
	return false
}

// lookupEncoding resolves a label to a codec. UTF-8 labels return nil, which
// callers treat as strict UTF-8 validation.
func lookupEncoding(label string) (encoding.Encoding, error) {
	if isUTF8(label) {
		return nil, nil
	}
	if enc, ok := aliases[normalizeLabel(label)]; ok {
		return enc, nil
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", label)
}

// decodeBytes decodes data with the named encoding. UTF-8 is strict: any
// invalid byte sequence is an error. A leading UTF-8 BOM is dropped.
func decodeBytes(data []byte, label string) (string, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return "", err
	}
	if enc == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid %s byte sequence", label)
		}
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeWithFallback tries the configured encoding and then each fallback,
// returning the text and the label that worked.
func decodeWithFallback(data []byte, primary string) (string, string, []string, error) {
	candidates := append([]string{primary}, fallbackEncodings...)
	tried := make([]string, 0, len(candidates))
	var lastErr error
	for _, label := range candidates {
		tried = append(tried, label)
		text, err := decodeBytes(data, label)
		if err == nil {
			return text, label, tried, nil
		}
		lastErr = err
	}
	return "", "", tried, lastErr
}
