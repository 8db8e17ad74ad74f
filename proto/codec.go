// Package proto implements the Aetheric Engine wire format and its streaming
// de-framer.
//
// Two frame kinds share one byte stream:
//
//	ASCII:  '$' <printable payload> ';'
//	Binary: 0xAA <5-byte big-endian length> <payload>
//
// Binary frames carry no terminator; they are framed purely by the declared
// length. Bytes that start neither frame kind are skipped one at a time until
// a marker is found.
package proto

import (
	"errors"
	"fmt"
	"io"
)

// Wire sentinels and sizes.
const (
	// ASCIIStart opens an ASCII frame.
	ASCIIStart byte = 0x24 // '$'
	// ASCIIEnd closes an ASCII frame.
	ASCIIEnd byte = 0x3B // ';'
	// BinaryHeader opens a binary frame header.
	BinaryHeader byte = 0xAA

	// LengthFieldSize is the size of the binary length field.
	LengthFieldSize = 5
	// HeaderSize is the marker byte plus the length field.
	HeaderSize = 1 + LengthFieldSize
	// MaxBinaryLength is the largest length the header can declare.
	MaxBinaryLength uint64 = 1<<40 - 1

	// MinASCIILength is the shortest accepted ASCII payload.
	MinASCIILength = 5
	// PreviewSize bounds the payload bytes carried by a discard event.
	PreviewSize = 15
)

// Printable range accepted inside ASCII payloads (inclusive).
const (
	minPrintable byte = 0x20
	maxPrintable byte = 0x7E
)

// Outbound control lines. Neither is part of the de-framer.
const (
	greetingPrefix = "AUTH "
	lineEnd        = "\r\n"
	// StatusRequest asks the engine for a status report.
	StatusRequest = "STATUS" + lineEnd
)

// ErrLengthOverflow is returned when a payload cannot be described by the
// 40-bit length field.
var ErrLengthOverflow = errors.New("proto: payload exceeds 40-bit length field")

// Greeting returns the line sent immediately after connecting.
func Greeting(token string) string {
	return greetingPrefix + token + lineEnd
}

// DecodeLength decodes a 5-byte big-endian length field. Every byte
// contributes its positional weight, zero bytes included.
func DecodeLength(field []byte) uint64 {
	var n uint64
	for _, b := range field[:LengthFieldSize] {
		n = n<<8 | uint64(b)
	}
	return n
}

// EncodeHeader returns the 6-byte header for a payload of length n.
func EncodeHeader(n uint64) ([HeaderSize]byte, error) {
	var hdr [HeaderSize]byte
	if n > MaxBinaryLength {
		return hdr, fmt.Errorf("%w: %d", ErrLengthOverflow, n)
	}
	hdr[0] = BinaryHeader
	for i := LengthFieldSize; i >= 1; i-- {
		hdr[i] = byte(n)
		n >>= 8
	}
	return hdr, nil
}

// IsPrintable reports whether b may appear inside an ASCII payload.
func IsPrintable(b byte) bool {
	return b >= minPrintable && b <= maxPrintable && b != ASCIIStart && b != ASCIIEnd
}

// AppendASCII appends an ASCII frame carrying text to dst. The text is not
// validated, so malformed frames can be produced on purpose.
func AppendASCII(dst []byte, text string) []byte {
	dst = append(dst, ASCIIStart)
	dst = append(dst, text...)
	return append(dst, ASCIIEnd)
}

// AppendBinary appends a binary frame carrying payload to dst.
func AppendBinary(dst, payload []byte) ([]byte, error) {
	hdr, err := EncodeHeader(uint64(len(payload)))
	if err != nil {
		return dst, err
	}
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

// Encoder writes well-formed frames to a stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteASCII writes one ASCII frame.
func (e *Encoder) WriteASCII(text string) error {
	_, err := e.w.Write(AppendASCII(nil, text))
	return err
}

// WriteBinary writes one binary frame. The header and payload are written
// separately so large payloads are not copied.
func (e *Encoder) WriteBinary(payload []byte) error {
	hdr, err := EncodeHeader(uint64(len(payload)))
	if err != nil {
		return err
	}
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = e.w.Write(payload)
	return err
}

// WriteBinaryFrom writes a binary frame whose payload of length n is read
// from r.
func (e *Encoder) WriteBinaryFrom(r io.Reader, n uint64) error {
	hdr, err := EncodeHeader(n)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	copied, err := io.CopyN(e.w, r, int64(n))
	if err != nil {
		return fmt.Errorf("proto: copy payload (%d of %d bytes): %w", copied, n, err)
	}
	return nil
}
