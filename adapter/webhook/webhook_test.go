package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/aetheric/adapter"
	"github.com/justapithecus/aetheric/iox"
)

func testEvent() *adapter.SessionCompletedEvent {
	return &adapter.SessionCompletedEvent{
		EventType:    adapter.EventTypeSessionCompleted,
		SessionID:    "sess-001",
		Remote:       "127.0.0.1:9000",
		Day:          "2026-10-19",
		Outcome:      "completed",
		DBPath:       "./sqlite-db/ae.db",
		SpoolDir:     "./data/bin",
		Timestamp:    "2026-10-19T12:00:00Z",
		ASCIICount:   600,
		BinaryCount:  12,
		DiscardCount: 3,
		BytesSpooled: 1 << 20,
		DurationMs:   1500,
	}
}

// statusSequence answers with codes in order, repeating the last one.
func statusSequence(attempts *atomic.Int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := int(attempts.Add(1))
		if n > len(codes) {
			n = len(codes)
		}
		w.WriteHeader(codes[n-1])
	}
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))
	return a
}

func TestPublish_DeliversEventWithHeaders(t *testing.T) {
	var (
		got     adapter.SessionCompletedEvent
		headers http.Header
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer t0ken"}})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got.SessionID != "sess-001" || got.BinaryCount != 12 {
		t.Errorf("event = %+v, want sess-001 with 12 binary frames", got)
	}
	want := map[string]string{
		"Content-Type":  "application/json",
		HeaderEvent:     adapter.EventTypeSessionCompleted,
		HeaderSession:   "sess-001",
		"Authorization": "Bearer t0ken",
	}
	for k, v := range want {
		if headers.Get(k) != v {
			t.Errorf("header %s = %q, want %q", k, headers.Get(k), v)
		}
	}
	if !strings.HasPrefix(headers.Get("User-Agent"), "aetheric/") {
		t.Errorf("User-Agent = %q, want aetheric/ prefix", headers.Get("User-Agent"))
	}
	if headers.Get(HeaderSignature) != "" {
		t.Errorf("signature set without a secret: %q", headers.Get(HeaderSignature))
	}
}

func TestPublish_SignsBody(t *testing.T) {
	var sig string
	var body []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(HeaderSignature)
		body, _ = io.ReadAll(r.Body)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Secret: "s3cret"})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if want := Sign("s3cret", body); sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}
}

func TestSign(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	want := "sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
}

func TestPublish_RetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		codes    []int
		retries  int
		wantErr  bool
		attempts int32
	}{
		{"2xx first try", []int{http.StatusAccepted}, 3, false, 1},
		{"5xx then ok", []int{500, 502, 200}, 3, false, 3},
		{"5xx exhausts", []int{503}, 2, true, 3},
		{"429 retried", []int{429, 200}, 1, false, 2},
		{"408 retried", []int{408, 200}, 1, false, 2},
		{"400 final", []int{400}, 3, true, 1},
		{"401 final", []int{401}, 3, true, 1},
		{"404 final", []int{404}, 3, true, 1},
		{"no retries", []int{500}, 0, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(statusSequence(&attempts, tt.codes...))
			defer ts.Close()

			a := newAdapter(t, Config{URL: ts.URL, Retries: tt.retries, Timeout: 5 * time.Second})
			err := a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestStatusError_Retriable(t *testing.T) {
	for code, want := range map[int]bool{400: false, 403: false, 408: true, 429: true, 500: true, 504: true} {
		if got := (&StatusError{Code: code}).Retriable(); got != want {
			t.Errorf("StatusError{%d}.Retriable() = %v, want %v", code, got, want)
		}
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	a := newAdapter(t, Config{URL: ts.URL, Timeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("Publish() error = nil, want cancellation error")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without URL: error = nil")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("New() with negative retries: error = nil")
	}

	a, err := New(Config{URL: "http://example.com", Retries: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
	if a.config.Retries != 5 {
		t.Errorf("Retries = %d, want 5", a.config.Retries)
	}
}
