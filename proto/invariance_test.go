package proto

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/justapithecus/aetheric/admission"
)

// mixedStream exercises every parser path: valid and invalid ASCII, resync
// garbage, admitted and denied binary frames, and a zero-length frame.
func mixedStream(t *testing.T) []byte {
	t.Helper()
	var s []byte
	s = append(s, 0x00, 0x7F, 'z')
	s = AppendASCII(s, "HELLO")
	s = AppendASCII(s, "AB")
	s = append(s, binaryFrame(t, testPayload(3000))...)
	s = AppendASCII(s, "bad\tpayload")
	s = append(s, binaryFrame(t, testPayload(deniedSize))...)
	s = AppendASCII(s, "AFTER DENIAL")
	s = append(s, ';', ';')
	s = append(s, binaryFrame(t, nil)...)
	s = AppendASCII(s, "has$marker")
	s = append(s, binaryFrame(t, testPayload(17))...)
	s = AppendASCII(s, "THE END")
	return s
}

const deniedSize = 4096

func denyLarge() admission.Admitter {
	return admission.Func(func(_ context.Context, n uint64) bool {
		return n < deniedSize
	})
}

func runChunked(t *testing.T, stream []byte, sizes func(remaining int) int) []string {
	t.Helper()
	r := newRecorder(t)
	p := NewParser(r, Options{Admitter: denyLarge()})
	ctx := t.Context()

	for len(stream) > 0 {
		n := min(sizes(len(stream)), len(stream))
		chunk := slices.Clone(stream[:n])
		stream = stream[n:]
		if err := p.Feed(ctx, chunk); err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
	}
	if p.State().Kind != StateIdle {
		t.Fatalf("final State = %v, want idle", p.State().Kind)
	}
	return r.events
}

func TestParser_ChunkingInvariance(t *testing.T) {
	stream := mixedStream(t)
	want := runChunked(t, stream, func(n int) int { return n })

	if len(want) != 10 {
		t.Fatalf("reference run produced %d events, want 10: %q", len(want), want)
	}

	for _, size := range []int{1, 2, 3, 5, 6, 7, 13, 64, 1000, 4099} {
		t.Run(fmt.Sprintf("fixed=%d", size), func(t *testing.T) {
			got := runChunked(t, stream, func(int) int { return size })
			if !slices.Equal(got, want) {
				t.Errorf("events differ\n got: %q\nwant: %q", got, want)
			}
		})
	}

	for seed := range uint64(20) {
		t.Run(fmt.Sprintf("random=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			got := runChunked(t, stream, func(int) int { return 1 + rng.IntN(97) })
			if !slices.Equal(got, want) {
				t.Errorf("events differ\n got: %q\nwant: %q", got, want)
			}
		})
	}
}
