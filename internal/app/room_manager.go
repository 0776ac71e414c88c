package app

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrConnGone = errors.New("connection gone")

type RoomInfo struct {
	MeetingID    domain.MeetingID `json:"meetingId"`
	Participants int              `json:"participants"`
	Delegates    int              `json:"delegates"`
}

// JoinFrames builds the snapshot frame for the joiner and the announcement
// for the whole room from the pre-join participant list.
type JoinFrames func(prior []domain.Participant) (toJoiner, toRoom core.Frame)

type JoinResult struct {
	Prior     []domain.Participant
	Published PublishResult
}

type LeaveResult struct {
	MeetingID domain.MeetingID
	Emptied   bool
	Published PublishResult
}

// RoomManager is the Room Registry. A room is in the map iff it has members;
// the leave that empties a room closes it and removes it while still holding
// the room lock. Lock order is room -> manager and room -> registry.
type RoomManager struct {
	reg *Registry

	mu    sync.RWMutex
	rooms map[domain.MeetingID]*Room
}

func NewRoomManager(reg *Registry) *RoomManager {
	return &RoomManager{
		reg:   reg,
		rooms: make(map[domain.MeetingID]*Room),
	}
}

func (m *RoomManager) Get(id domain.MeetingID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

func (m *RoomManager) getOrCreate(id domain.MeetingID) *Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	m.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("meeting", string(id)).Msg("room created")
	return room
}

// removeLocked must be called with room.mu held.
func (m *RoomManager) removeLocked(room *Room) {
	room.closed = true
	m.mu.Lock()
	if cur, ok := m.rooms[room.id]; ok && cur == room {
		delete(m.rooms, room.id)
	}
	m.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("meeting", string(room.id)).Msg("room removed")
}

// Join adds p to the room for id, creating it on first join. The joiner's
// frame is enqueued before the room announcement, and both before the room
// lock is released.
func (m *RoomManager) Join(id domain.MeetingID, p domain.Participant, frames JoinFrames) (JoinResult, error) {
	sig, ok := m.reg.Signal(p.ConnID)
	if !ok {
		return JoinResult{}, ErrConnGone
	}
	for {
		room := m.getOrCreate(id)
		room.mu.Lock()
		if room.closed {
			room.mu.Unlock()
			continue
		}
		if !m.reg.Attach(p.ConnID, id) {
			if len(room.members) == 0 {
				m.removeLocked(room)
			}
			room.mu.Unlock()
			return JoinResult{}, ErrConnGone
		}

		prior := room.participantsLocked(p.ConnID)
		seq := room.seq
		if existing, ok := room.members[p.ConnID]; ok {
			seq = existing.seq
		} else {
			room.seq++
		}
		room.members[p.ConnID] = &member{Participant: p, sig: sig, seq: seq}

		res := JoinResult{Prior: prior}
		toJoiner, toRoom := frames(prior)
		if toJoiner != nil {
			if err := sig.TrySend(toJoiner); err != nil {
				res.Published.Dropped = append(res.Published.Dropped, p.ConnID)
			}
		}
		if toRoom != nil {
			res.Published.merge(room.fanoutLocked(toRoom, ""))
		}
		room.mu.Unlock()

		log.Info().Str("module", "app.rooms").Str("meeting", string(id)).Str("conn", string(p.ConnID)).Int("prior", len(prior)).Msg("joined")
		return res, nil
	}
}

// Leave removes conn from each listed room. Remaining members get frame(id);
// a room left empty is closed and removed instead.
func (m *RoomManager) Leave(conn domain.ConnID, meetings []domain.MeetingID, frame func(domain.MeetingID) core.Frame) []LeaveResult {
	out := make([]LeaveResult, 0, len(meetings))
	for _, id := range meetings {
		room, ok := m.Get(id)
		if !ok {
			continue
		}
		room.mu.Lock()
		if _, ok := room.members[conn]; !ok {
			room.mu.Unlock()
			continue
		}
		delete(room.members, conn)
		res := LeaveResult{MeetingID: id}
		if len(room.members) == 0 {
			m.removeLocked(room)
			res.Emptied = true
		} else if frame != nil {
			res.Published = room.fanoutLocked(frame(id), "")
		}
		room.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("meeting", string(id)).Str("conn", string(conn)).Bool("emptied", res.Emptied).Msg("left")
		out = append(out, res)
	}
	return out
}

// List skips rooms caught between creation and their first member.
func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		n, d := len(r.members), len(r.delegates)
		r.mu.Unlock()
		if n == 0 {
			continue
		}
		out = append(out, RoomInfo{MeetingID: r.id, Participants: n, Delegates: d})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(string(a.MeetingID), string(b.MeetingID)) })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
