package dbi

import (
	"context"
	"sync"
)

// Ctx Access Helpers

type resultSlotKey struct{}

type resultSlot struct {
	mu   sync.Mutex
	last *ResultSet
}

// WithResultSlot returns a context in which every successful Statement.Execute
// records its result, readable with LastResult. The slot belongs to the
// returned context and its children only.
func WithResultSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, resultSlotKey{}, &resultSlot{})
}

// LastResult returns the most recent result executed with ctx (or a child of it).
func LastResult(ctx context.Context) (*ResultSet, bool) {
	slot, ok := ctx.Value(resultSlotKey{}).(*resultSlot)
	if !ok {
		return nil, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.last, slot.last != nil
}

func publishResult(ctx context.Context, rs *ResultSet) {
	if ctx == nil {
		return
	}
	slot, ok := ctx.Value(resultSlotKey{}).(*resultSlot)
	if !ok {
		return
	}
	slot.mu.Lock()
	slot.last = rs
	slot.mu.Unlock()
}
