package core

// decode.go converts raw bytes into text for the delimited-text path.
//
// The decoder is a two-attempt cascade, not a detector:
//
//  1. A leading UTF-8 byte-order mark selects UTF-8 directly.
//  2. EUC-KR (CP949) is tried next, since most source exports are produced
//     by Korean-locale spreadsheet tools.
//  3. If EUC-KR errors or produces replacement characters, the bytes are
//     read as UTF-8 with invalid sequences replaced.
//
// Known limitation: short UTF-8 Hangul runs without a BOM can also be valid
// CP949 and decode without error in step 2. Longer text almost always hits
// an illegal pair and falls through.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding names the text encoding a buffer was decoded with.
type Encoding string

const (
	EncodingASCII Encoding = "ascii"
	EncodingEUCKR Encoding = "euc-kr"
	EncodingUTF8  Encoding = "utf-8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrDecodeFailure is returned when no attempted encoding yields clean text.
// The accompanying text is still usable as a best-effort rendering.
var ErrDecodeFailure = errors.New("encoding error: no encoding produced clean text")

// Decode converts data into a string. On ErrDecodeFailure the returned text
// is the UTF-8 reading with invalid bytes replaced by U+FFFD.
func Decode(data []byte) (string, Encoding, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(sanitizeUTF8(data[len(utf8BOM):])), EncodingUTF8, nil
	}

	if isAllASCII(data) {
		return string(data), EncodingASCII, nil
	}

	if text, err := decodeEUCKR(data); err == nil {
		return strings.TrimPrefix(text, "\uFEFF"), EncodingEUCKR, nil
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	return string(sanitizeUTF8(data)), EncodingUTF8, fmt.Errorf("decode %d bytes: %w", len(data), ErrDecodeFailure)
}

// decodeEUCKR runs the EUC-KR decoder and rejects output containing
// replacement characters, which x/text emits for invalid byte pairs.
func decodeEUCKR(data []byte) (string, error) {
	r := transform.NewReader(bytes.NewReader(data), korean.EUCKR.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.New("euc-kr: invalid byte sequence")
	}
	return string(out), nil
}

// isAllASCII returns true if all bytes are ASCII (< 128). ASCII decodes
// identically under every attempted encoding.
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
