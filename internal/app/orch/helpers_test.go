package orch

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/testutil"
	"github.com/stretchr/testify/require"
)

const wait = time.Second

var fixedNow = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

type harness struct {
	o     *Orchestrator
	store *testutil.MockStore
	gen   *testutil.MockGenerator
	conns map[domain.ConnID]*testutil.RecordingConn
}

func newHarness(t *testing.T, policy app.Policy, meetings ...domain.MeetingID) *harness {
	t.Helper()
	h := &harness{
		store: testutil.NewMockStore(meetings...),
		gen:   &testutil.MockGenerator{},
		conns: make(map[domain.ConnID]*testutil.RecordingConn),
	}
	h.o = New(Deps{
		Policy:      policy,
		Meetings:    h.store,
		Transcripts: h.store,
		Personas:    h.store,
		Generator:   h.gen,
	}, Options{
		StoreTimeout:    time.Second,
		GenerateTimeout: time.Second,
		Now:             func() time.Time { return fixedNow },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.o.Shutdown(ctx)
	})
	return h
}

func (h *harness) connect(ids ...domain.ConnID) {
	for _, id := range ids {
		c := testutil.NewRecordingConn()
		h.conns[id] = c
		h.o.Connect(id, c, func() {})
	}
}

func (h *harness) join(t *testing.T, conn domain.ConnID, meeting domain.MeetingID, name string) {
	t.Helper()
	require.NoError(t, h.o.Join(context.Background(), conn, meeting, name, domain.RoleGuest))
}

func (h *harness) reset() {
	for _, c := range h.conns {
		c.Reset()
	}
}

func (h *harness) chats(t *testing.T, id domain.ConnID) []core.ChatMessage {
	t.Helper()
	var out []core.ChatMessage
	for _, f := range h.conns[id].OfType(core.EvChatMessage) {
		var m core.ChatMessage
		f.Decode(t, &m)
		out = append(out, m)
	}
	return out
}
