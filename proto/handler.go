package proto

import (
	"context"

	"github.com/justapithecus/aetheric/types"
)

// Handler receives completed frames from a Parser.
//
// Callbacks run on the goroutine calling Feed and may block; the parser does
// not process further bytes until they return.
type Handler interface {
	// OnASCII is called once per valid ASCII frame.
	OnASCII(ctx context.Context, frame types.ASCIIFrame) error
	// OnBinaryStart is called once per admitted binary frame, before any
	// payload byte is written. It returns the temp path to spool into, which
	// must end in spool.TempSuffix. An error discards the frame.
	OnBinaryStart(ctx context.Context, declaredLength uint64) (tmpPath string, err error)
	// OnBinaryComplete is called once per committed binary frame.
	OnBinaryComplete(ctx context.Context, frame types.BinaryFrame) error
}

// DiscardHandler is optionally implemented by a Handler to observe
// rejected frames. It is informational only.
type DiscardHandler interface {
	OnDiscard(ctx context.Context, ev types.DiscardEvent)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops;
// a nil OnBinaryStartFunc refuses every binary frame.
type HandlerFuncs struct {
	OnASCIIFunc          func(ctx context.Context, frame types.ASCIIFrame) error
	OnBinaryStartFunc    func(ctx context.Context, declaredLength uint64) (string, error)
	OnBinaryCompleteFunc func(ctx context.Context, frame types.BinaryFrame) error
	OnDiscardFunc        func(ctx context.Context, ev types.DiscardEvent)
}

// OnASCII calls OnASCIIFunc if set.
func (h HandlerFuncs) OnASCII(ctx context.Context, frame types.ASCIIFrame) error {
	if h.OnASCIIFunc == nil {
		return nil
	}
	return h.OnASCIIFunc(ctx, frame)
}

// OnBinaryStart calls OnBinaryStartFunc, or refuses the frame when it is nil.
func (h HandlerFuncs) OnBinaryStart(ctx context.Context, declaredLength uint64) (string, error) {
	if h.OnBinaryStartFunc == nil {
		return "", errNoSpoolTarget
	}
	return h.OnBinaryStartFunc(ctx, declaredLength)
}

// OnBinaryComplete calls OnBinaryCompleteFunc if set.
func (h HandlerFuncs) OnBinaryComplete(ctx context.Context, frame types.BinaryFrame) error {
	if h.OnBinaryCompleteFunc == nil {
		return nil
	}
	return h.OnBinaryCompleteFunc(ctx, frame)
}

// OnDiscard calls OnDiscardFunc if set.
func (h HandlerFuncs) OnDiscard(ctx context.Context, ev types.DiscardEvent) {
	if h.OnDiscardFunc != nil {
		h.OnDiscardFunc(ctx, ev)
	}
}

var (
	_ Handler        = HandlerFuncs{}
	_ DiscardHandler = HandlerFuncs{}
)
