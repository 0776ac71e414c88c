package app

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownConn = errors.New("unknown connection")

type connEntry struct {
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
	UserID   domain.UserID
	Meetings map[domain.MeetingID]struct{}
}

// Registry is the Connection Registry: live connections, user presence and
// the connection -> meetings index. One lock guards all three so that an
// index attach can never race a disconnect.
type Registry struct {
	mu       sync.RWMutex
	conns    map[domain.ConnID]*connEntry
	presence map[domain.UserID]domain.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[domain.ConnID]*connEntry),
		presence: make(map[domain.UserID]domain.ConnID),
	}
}

// Bind records a freshly opened transport session.
func (r *Registry) Bind(id domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{
		Signal:   sig,
		Cancel:   cancel,
		Meetings: make(map[domain.MeetingID]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// Unbind forgets the connection and every presence entry pointing at it.
// It returns the meetings the connection was still attached to.
func (r *Registry) Unbind(id domain.ConnID) []domain.MeetingID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind connection")
	return sortedMeetings(e.Meetings)
}

// Register stores userID -> id, overwriting any earlier connection of that user.
// An empty userID is ignored.
func (r *Registry) Register(id domain.ConnID, userID domain.UserID) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.presence[userID]; ok && prev != id {
		log.Info().Str("module", "app.registry").Str("user", string(userID)).Str("prev_conn", string(prev)).Msg("presence overwritten")
	}
	r.presence[userID] = id
	if e, ok := r.conns[id]; ok {
		e.UserID = userID
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(userID)).Msg("registered presence")
}

func (r *Registry) Resolve(userID domain.UserID) (domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.presence[userID]
	return id, ok
}

// Unregister drops every presence entry whose value is id.
func (r *Registry) Unregister(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *Registry) unregisterLocked(id domain.ConnID) {
	for uid, cid := range r.presence {
		if cid == id {
			delete(r.presence, uid)
		}
	}
}

func (r *Registry) UserOf(id domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.UserID == "" {
		return "", false
	}
	return e.UserID, true
}

func (r *Registry) Signal(id domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.Signal, true
}

// Send delivers one frame to a single connection without blocking.
func (r *Registry) Send(id domain.ConnID, f core.Frame) error {
	sig, ok := r.Signal(id)
	if !ok {
		return ErrUnknownConn
	}
	return sig.TrySend(f)
}

// Attach adds meeting to the connection's index. It fails if the connection
// is no longer bound, which is how a join loses against a disconnect.
func (r *Registry) Attach(id domain.ConnID, meeting domain.MeetingID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.Meetings[meeting] = struct{}{}
	return true
}

// Detach removes one meeting from the index and reports whether it was there.
func (r *Registry) Detach(id domain.ConnID, meeting domain.MeetingID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, ok := e.Meetings[meeting]; !ok {
		return false
	}
	delete(e.Meetings, meeting)
	return true
}

// DetachAll clears the index for id and returns what it held.
func (r *Registry) DetachAll(id domain.ConnID) []domain.MeetingID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := sortedMeetings(e.Meetings)
	clear(e.Meetings)
	return out
}

// MeetingsOf answers "which rooms is this connection in".
func (r *Registry) MeetingsOf(id domain.ConnID) []domain.MeetingID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	return sortedMeetings(e.Meetings)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the connection's pumps and closes its transport; teardown
// follows through the read loop.
func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	if e.Signal != nil {
		e.Signal.Close()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}

func sortedMeetings(m map[domain.MeetingID]struct{}) []domain.MeetingID {
	return slices.Sorted(maps.Keys(m))
}
