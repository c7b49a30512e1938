// Package encoding detects the byte encoding of raw government data files
// and transcodes windows-1252 input to UTF-8.
//
// No statistical-encoding-detection library travels with this pipeline's
// dependency pack (the retrieved example repos carry no chardet-equivalent
// module); this package is therefore a small heuristic built directly on
// golang.org/x/text/encoding/charmap rather than ported from a library, and
// is deliberately conservative: it never fails on ambiguous input, only on
// an unreadable file.
package encoding

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Canonical encoding labels.
const (
	UTF8         = "utf8"
	Windows1252 = "windows-1252"
)

// ErrUnreadable is returned when the file cannot be read at all.
var ErrUnreadable = errors.New("encoding: file unreadable")

// sampleSize bounds how much of the file is scanned for detection.
const sampleSize = 64 * 1024

// Detect reads up to sampleSize bytes from r and returns a canonical
// encoding label. It never returns an error for ambiguous content; only a
// read failure is reported.
func Detect(r io.Reader) (string, error) {
	buf := make([]byte, sampleSize)

	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", ErrUnreadable
	}

	sample := buf[:n]
	sample = bytes.TrimPrefix(sample, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	if utf8.Valid(sample) {
		return UTF8, nil
	}

	return Windows1252, nil
}

// Transcode converts windows-1252 bytes to UTF-8. It is a no-op for utf8.
func Transcode(label string, data []byte) ([]byte, error) {
	if label != Windows1252 {
		return data, nil
	}

	return charmap.Windows1252.NewDecoder().Bytes(data)
}
