package orch

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1", "c2")
	h.o.RegisterSession("c1", "alice")
	h.o.RegisterSession("c2", "bob")

	h.o.InitiateCall("c1", "", "Alice", "bob", "abc-defg-hij")

	frames := h.conns["c2"].OfType(core.EvReceivingCall)
	require.Len(t, frames, 1)
	var ring core.ReceivingCall
	frames[0].Decode(t, &ring)
	assert.Equal(t, core.ReceivingCall{
		CallerUserID:       "alice",
		CallerName:         "Alice",
		CallerConnectionID: "c1",
		MeetingID:          "abc-defg-hij",
	}, ring)
	assert.Empty(t, h.conns["c1"].Frames())

	h.o.AcceptCall(ring.CallerConnectionID, ring.MeetingID)
	var accepted core.CallAccepted
	h.conns["c1"].WaitFor(t, core.EvCallAccepted, wait).Decode(t, &accepted)
	assert.Equal(t, domain.MeetingID("abc-defg-hij"), accepted.MeetingID)

	h.o.DeclineCall("c1")
	assert.Len(t, h.conns["c1"].OfType(core.EvCallDeclined), 1)
	assert.Empty(t, h.conns["c2"].OfType(core.EvCallDeclined))
}

func TestCallOfflineTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1")

	h.o.InitiateCall("c1", "alice", "Alice", "nobody", "")

	var failed core.CallFailed
	h.conns["c1"].WaitFor(t, core.EvCallFailed, wait).Decode(t, &failed)
	assert.Equal(t, "offline", failed.Reason)
}

func TestCallStalePresence(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1")
	h.o.RegisterSession("dead", "bob")

	h.o.InitiateCall("c1", "alice", "Alice", "bob", "")

	assert.Len(t, h.conns["c1"].OfType(core.EvCallFailed), 1)
	_, ok := h.o.Registry.Resolve("bob")
	assert.False(t, ok, "stale presence must be dropped")
}

func TestCallerUserFallsBackToSession(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1", "c2")
	h.o.RegisterSession("c1", "alice")
	h.o.RegisterSession("c2", "bob")

	h.o.InitiateCall("c1", "", "", "bob", "")
	var ring core.ReceivingCall
	h.conns["c2"].WaitFor(t, core.EvReceivingCall, wait).Decode(t, &ring)
	assert.Equal(t, domain.UserID("alice"), ring.CallerUserID)
}

func TestRelay(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1", "c2")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.o.Relay("c1", "c2", "offer", offer)

	var sig core.Signal
	h.conns["c2"].WaitFor(t, core.EvSignal, wait).Decode(t, &sig)
	assert.Equal(t, domain.ConnID("c1"), sig.From)
	assert.Equal(t, "offer", sig.Type)
	assert.JSONEq(t, string(offer), string(sig.Data))

	// Unknown targets are dropped without feedback.
	h.o.Relay("c1", "ghost", "offer", offer)
	assert.Empty(t, h.conns["c1"].Frames())
}

func TestRelayKeepsDataKey(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("c1", "c2")

	h.o.Relay("c1", "c2", "renegotiate", nil)

	var fields map[string]json.RawMessage
	h.conns["c2"].WaitFor(t, core.EvSignal, wait).Decode(t, &fields)
	require.Contains(t, fields, "data")
	assert.Equal(t, "null", string(fields["data"]))
}
