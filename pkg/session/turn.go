package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrTurnHandleNil = errors.New("turn handle is nil")

// TurnHandle represents one in-flight request/response cycle.
//
// It is cancelable and waitable. Cancel is the only preemptive interruption;
// deleting or leaving the conversation merely makes the turn irrelevant.
type TurnHandle struct {
	ID             string
	ConversationID int64
	Input          string

	done      chan struct{}
	abandoned atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	reply  string
	merged bool
	err    error
}

func newTurnHandle(id string, conversationID int64, input string, cancel context.CancelFunc) *TurnHandle {
	return &TurnHandle{
		ID:             id,
		ConversationID: conversationID,
		Input:          input,
		done:           make(chan struct{}),
		cancel:         cancel,
	}
}

func (h *TurnHandle) setResult(reply string, merged bool, err error) {
	h.mu.Lock()
	h.reply = reply
	h.merged = merged
	h.err = err
	close(h.done)
	h.cancel = nil
	h.mu.Unlock()
}

// abandon marks the turn irrelevant. It reports whether this call did it.
func (h *TurnHandle) abandon() bool {
	return h.abandoned.CompareAndSwap(false, true)
}

func (h *TurnHandle) Abandoned() bool {
	return h.abandoned.Load()
}

// Cancel aborts the remote call. It is safe to call multiple times.
func (h *TurnHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the turn is over and returns the trimmed reply.
func (h *TurnHandle) Wait() (string, error) {
	if h == nil {
		return "", ErrTurnHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reply, h.err
}

// Done is closed once the turn is over.
func (h *TurnHandle) Done() <-chan struct{} {
	return h.done
}

// Merged reports whether the reply was appended to its conversation. It is
// false if the turn failed, or its conversation was deleted or left meanwhile.
func (h *TurnHandle) Merged() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.merged
}

func (h *TurnHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
