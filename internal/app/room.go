package app

import (
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRoomClosed = errors.New("room closed")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnID
}

func (p *PublishResult) merge(o PublishResult) {
	p.SendTo += o.SendTo
	p.Dropped = append(p.Dropped, o.Dropped...)
}

type member struct {
	domain.Participant
	sig core.SignalConnection
	seq uint64
}

// Room is the live state of one meeting. Every mutation and every fan-out
// happens under mu, so recipients observe events in the same order as
// membership changes. Sends are non-blocking enqueues.
type Room struct {
	id domain.MeetingID

	mu        sync.Mutex
	members   map[domain.ConnID]*member
	delegates []domain.Delegate
	seq       uint64
	closed    bool
}

func newRoom(id domain.MeetingID) *Room {
	return &Room{
		id:      id,
		members: make(map[domain.ConnID]*member),
	}
}

func (r *Room) ID() domain.MeetingID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Participants returns members in join order.
func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked("")
}

func (r *Room) participantsLocked(except domain.ConnID) []domain.Participant {
	ms := make([]*member, 0, len(r.members))
	for id, m := range r.members {
		if id == except {
			continue
		}
		ms = append(ms, m)
	}
	slices.SortFunc(ms, func(a, b *member) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]domain.Participant, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Participant)
	}
	return out
}

// Participant looks up one member.
func (r *Room) Participant(id domain.ConnID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return domain.Participant{}, false
	}
	return m.Participant, true
}

func (r *Room) Delegates() []domain.Delegate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.delegates)
}

// AddDelegate appends d unless a delegate with the same name exists.
// build runs only when d was added and its frame goes to every member.
func (r *Room) AddDelegate(d domain.Delegate, build func() core.Frame) (bool, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, PublishResult{}, ErrRoomClosed
	}
	for _, existing := range r.delegates {
		if existing.Name == d.Name {
			return false, PublishResult{}, nil
		}
	}
	r.delegates = append(r.delegates, d)
	log.Info().Str("module", "app.room").Str("meeting", string(r.id)).Str("delegate", d.Name).Msg("delegate added")
	var res PublishResult
	if build != nil {
		res = r.fanoutLocked(build(), "")
	}
	return true, res, nil
}

// Publish fans a frame out to the room. build receives the sender's
// membership record (ok=false for a non-member) and may return nil to skip.
func (r *Room) Publish(from domain.ConnID, includeSender bool, build func(sender domain.Participant, ok bool) core.Frame) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return PublishResult{}, ErrRoomClosed
	}
	var (
		sender domain.Participant
		ok     bool
	)
	if m, found := r.members[from]; found {
		sender, ok = m.Participant, true
	}
	f := build(sender, ok)
	if f == nil {
		return PublishResult{}, nil
	}
	exclude := from
	if includeSender {
		exclude = ""
	}
	return r.fanoutLocked(f, exclude), nil
}

func (r *Room) fanoutLocked(f core.Frame, exclude domain.ConnID) PublishResult {
	res := PublishResult{}
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		if err := m.sig.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.room").Str("meeting", string(r.id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
