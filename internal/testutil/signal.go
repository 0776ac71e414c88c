package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/stretchr/testify/require"
)

// Frame is a decoded outbound message.
type Frame struct {
	Type    string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (f Frame) Decode(t testing.TB, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Payload, v), "payload of %s", f.Type)
}

// RecordingConn is a core.SignalConnection that keeps every frame it is
// given. Limit > 0 makes TrySend fail with ErrBackpressure once that many
// frames are held.
type RecordingConn struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
	Limit  int

	notify chan struct{}
}

func NewRecordingConn() *RecordingConn {
	return &RecordingConn{notify: make(chan struct{}, 1)}
}

func (c *RecordingConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.Limit > 0 && len(c.frames) >= c.Limit {
		return core.ErrBackpressure
	}
	var env core.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, Frame{Type: env.Type, Payload: env.Payload})
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *RecordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *RecordingConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Frames returns a copy of everything received so far.
func (c *RecordingConn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Types returns the event types received so far, in order.
func (c *RecordingConn) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Type)
	}
	return out
}

// OfType returns the received frames of one type.
func (c *RecordingConn) OfType(eventType string) []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Frame
	for _, f := range c.frames {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

// Reset drops recorded frames.
func (c *RecordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// WaitFor blocks until a frame of eventType arrives or the timeout passes.
func (c *RecordingConn) WaitFor(t testing.TB, eventType string, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if fs := c.OfType(eventType); len(fs) > 0 {
			return fs[len(fs)-1]
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("no %s frame within %s; got %v", eventType, timeout, c.Types())
			return Frame{}
		}
	}
}
