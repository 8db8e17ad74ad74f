package session

import (
	"context"
	"io"
	"net"
	"time"
)

// DefaultReadSize is the capacity of each read from the transport.
const DefaultReadSize = 64 * 1024

// chunk is one read result. Data and err may both be set.
type chunk struct {
	data []byte
	err  error
}

// readChunks reads r into fresh buffers and sends them on out in arrival
// order until a read fails. Each buffer is handed off and never reused,
// since the parser's frame buffer takes ownership of it.
//
// When r is a net.Conn and timeout is positive, every read gets its own
// deadline; a quiet period surfaces as a timeout error.
func readChunks(ctx context.Context, r io.Reader, size int, timeout time.Duration, out chan<- chunk) {
	defer close(out)
	if size <= 0 {
		size = DefaultReadSize
	}
	conn, _ := r.(net.Conn)

	for {
		if conn != nil && timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				send(ctx, out, chunk{err: err})
				return
			}
		}
		buf := make([]byte, size)
		n, err := r.Read(buf)
		c := chunk{err: err}
		if n > 0 {
			c.data = buf[:n]
		}
		if c.data == nil && c.err == nil {
			continue
		}
		if !send(ctx, out, c) || err != nil {
			return
		}
	}
}

func send(ctx context.Context, out chan<- chunk, c chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
