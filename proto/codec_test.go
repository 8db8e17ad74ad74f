package proto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecodeLength(t *testing.T) {
	tests := []struct {
		name  string
		field []byte
		want  uint64
	}{
		{"zero", []byte{0, 0, 0, 0, 0}, 0},
		{"one", []byte{0, 0, 0, 0, 1}, 1},
		{"low bytes", []byte{0, 0, 0, 0x01, 0x00}, 256},
		// Zero bytes between non-zero bytes keep their positional weight.
		{"inner zeros", []byte{0, 0x01, 0, 0, 0x01}, 1<<24 + 1},
		{"leading byte", []byte{0x01, 0, 0, 0, 0}, 1 << 32},
		{"max", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, MaxBinaryLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeLength(tt.field); got != tt.want {
				t.Errorf("DecodeLength(% x) = %d, want %d", tt.field, got, tt.want)
			}
		})
	}
}

func TestEncodeHeader_RoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 255, 256, 65537, 1<<24 + 1, 1 << 32, MaxBinaryLength} {
		hdr, err := EncodeHeader(n)
		if err != nil {
			t.Fatalf("EncodeHeader(%d) failed: %v", n, err)
		}
		if hdr[0] != BinaryHeader {
			t.Errorf("EncodeHeader(%d)[0] = %#x, want %#x", n, hdr[0], BinaryHeader)
		}
		if got := DecodeLength(hdr[1:]); got != n {
			t.Errorf("DecodeLength(EncodeHeader(%d)) = %d", n, got)
		}
	}
}

func TestEncodeHeader_Overflow(t *testing.T) {
	_, err := EncodeHeader(MaxBinaryLength + 1)
	if !errors.Is(err, ErrLengthOverflow) {
		t.Errorf("EncodeHeader(max+1) error = %v, want ErrLengthOverflow", err)
	}
}

func TestIsPrintable(t *testing.T) {
	tests := []struct {
		b    byte
		want bool
	}{
		{' ', true},
		{'~', true},
		{'A', true},
		{0x1F, false},
		{0x7F, false},
		{'\t', false},
		{ASCIIStart, false},
		{ASCIIEnd, false},
		{BinaryHeader, false},
	}
	for _, tt := range tests {
		if got := IsPrintable(tt.b); got != tt.want {
			t.Errorf("IsPrintable(%#x) = %v, want %v", tt.b, got, tt.want)
		}
	}
}

func TestControlLines(t *testing.T) {
	if got := Greeting("secret-token"); got != "AUTH secret-token\r\n" {
		t.Errorf("Greeting() = %q", got)
	}
	if StatusRequest != "STATUS\r\n" {
		t.Errorf("StatusRequest = %q", StatusRequest)
	}
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	if err := enc.WriteASCII("HELLO"); err != nil {
		t.Fatalf("WriteASCII failed: %v", err)
	}
	if err := enc.WriteBinary([]byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBinary failed: %v", err)
	}
	if err := enc.WriteBinaryFrom(strings.NewReader("xyz"), 3); err != nil {
		t.Fatalf("WriteBinaryFrom failed: %v", err)
	}

	want := []byte("$HELLO;")
	want = append(want, BinaryHeader, 0, 0, 0, 0, 3, 1, 2, 3)
	want = append(want, BinaryHeader, 0, 0, 0, 0, 3, 'x', 'y', 'z')
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded = % x, want % x", buf.Bytes(), want)
	}
}

func TestEncoder_WriteBinaryFromShortReader(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{})
	if err := enc.WriteBinaryFrom(strings.NewReader("ab"), 3); err == nil {
		t.Error("WriteBinaryFrom with short reader succeeded, want error")
	}
}

func TestAppendBinary(t *testing.T) {
	got, err := AppendBinary([]byte("x"), []byte("ab"))
	if err != nil {
		t.Fatalf("AppendBinary failed: %v", err)
	}
	want := []byte{'x', BinaryHeader, 0, 0, 0, 0, 2, 'a', 'b'}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendBinary = % x, want % x", got, want)
	}
}
