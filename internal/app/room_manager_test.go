package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, ids ...domain.ConnID) (*RoomManager, *Registry, map[domain.ConnID]*testutil.RecordingConn) {
	t.Helper()
	reg := NewRegistry()
	conns := make(map[domain.ConnID]*testutil.RecordingConn, len(ids))
	for _, id := range ids {
		c := testutil.NewRecordingConn()
		reg.Bind(id, c, nil)
		conns[id] = c
	}
	return NewRoomManager(reg), reg, conns
}

func joinFrames(id domain.ConnID) JoinFrames {
	return func(prior []domain.Participant) (core.Frame, core.Frame) {
		users := make([]core.RoomUser, 0, len(prior))
		for _, p := range prior {
			users = append(users, core.RoomUser{ConnectionID: p.ConnID, Name: p.Name})
		}
		return core.MustEncode(core.EvRoomInfo, core.RoomInfo{Users: users}),
			core.MustEncode(core.EvUserJoined, core.UserJoined{ConnectionID: id})
	}
}

func participant(id domain.ConnID, name string) domain.Participant {
	return domain.Participant{ConnID: id, Name: name, Role: domain.RoleGuest}
}

func leftFrame(conn domain.ConnID) func(domain.MeetingID) core.Frame {
	return func(id domain.MeetingID) core.Frame {
		return core.MustEncode(core.EvUserLeft, core.UserLeft{ConnectionID: conn, MeetingID: id})
	}
}

func TestJoinOrdersSnapshotBeforeAnnouncement(t *testing.T) {
	m, reg, conns := newManager(t, "a", "b")

	res, err := m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	require.NoError(t, err)
	assert.Empty(t, res.Prior)
	assert.Equal(t, []string{core.EvRoomInfo, core.EvUserJoined}, conns["a"].Types())

	res, err = m.Join("m1", participant("b", "Bob"), joinFrames("b"))
	require.NoError(t, err)
	require.Len(t, res.Prior, 1)
	assert.Equal(t, domain.ConnID("a"), res.Prior[0].ConnID)
	assert.Equal(t, 2, res.Published.SendTo)

	assert.Equal(t, []string{core.EvRoomInfo, core.EvUserJoined}, conns["b"].Types())
	assert.Equal(t, []string{core.EvRoomInfo, core.EvUserJoined, core.EvUserJoined}, conns["a"].Types())

	var info core.RoomInfo
	conns["b"].OfType(core.EvRoomInfo)[0].Decode(t, &info)
	require.Len(t, info.Users, 1)
	assert.Equal(t, "Alice", info.Users[0].Name)

	assert.Equal(t, []domain.MeetingID{"m1"}, reg.MeetingsOf("b"))
	room, ok := m.Get("m1")
	require.True(t, ok)
	assert.Equal(t, []domain.Participant{participant("a", "Alice"), participant("b", "Bob")}, room.Participants())
}

func TestJoinUnknownConnection(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Join("m1", participant("ghost", "G"), joinFrames("ghost"))
	assert.ErrorIs(t, err, ErrConnGone)
	assert.Equal(t, 0, m.Len())
}

func TestRejoinKeepsPosition(t *testing.T) {
	m, _, _ := newManager(t, "a", "b")
	_, err := m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	require.NoError(t, err)
	_, err = m.Join("m1", participant("b", "Bob"), joinFrames("b"))
	require.NoError(t, err)

	res, err := m.Join("m1", participant("a", "Alicia"), joinFrames("a"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{participant("b", "Bob")}, res.Prior)

	room, _ := m.Get("m1")
	ps := room.Participants()
	require.Len(t, ps, 2)
	assert.Equal(t, "Alicia", ps[0].Name)
	assert.Equal(t, 2, room.MemberCount())
}

func TestLeaveEmptiesRoomOnce(t *testing.T) {
	m, reg, conns := newManager(t, "a", "b")
	_, _ = m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	_, _ = m.Join("m1", participant("b", "Bob"), joinFrames("b"))
	conns["a"].Reset()

	reg.Detach("b", "m1")
	res := m.Leave("b", []domain.MeetingID{"m1"}, leftFrame("b"))
	require.Len(t, res, 1)
	assert.False(t, res[0].Emptied)
	assert.Equal(t, []string{core.EvUserLeft}, conns["a"].Types())

	// A second leave for the same conn is a no-op.
	assert.Empty(t, m.Leave("b", []domain.MeetingID{"m1"}, leftFrame("b")))

	reg.Detach("a", "m1")
	res = m.Leave("a", []domain.MeetingID{"m1"}, leftFrame("a"))
	require.Len(t, res, 1)
	assert.True(t, res[0].Emptied)
	_, ok := m.Get("m1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestJoinAfterEmptyCreatesFreshRoom(t *testing.T) {
	m, _, _ := newManager(t, "a")
	_, _ = m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	first, _ := m.Get("m1")
	require.NoError(t, first.addDelegateForTest("Alice"))

	m.Leave("a", []domain.MeetingID{"m1"}, leftFrame("a"))

	_, err := first.Publish("a", true, func(domain.Participant, bool) core.Frame { return core.MustEncode(core.EvPong, nil) })
	assert.ErrorIs(t, err, ErrRoomClosed)

	_, err = m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	require.NoError(t, err)
	second, _ := m.Get("m1")
	assert.NotSame(t, first, second)
	assert.Empty(t, second.Delegates())
}

func TestListSkipsEmptyRooms(t *testing.T) {
	m, _, _ := newManager(t, "a", "b")
	_, _ = m.Join("m2", participant("a", "Alice"), joinFrames("a"))
	_, _ = m.Join("m1", participant("b", "Bob"), joinFrames("b"))
	_, _ = m.Join("m2", participant("b", "Bob"), joinFrames("b"))
	m.getOrCreate("m3")

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, RoomInfo{MeetingID: "m1", Participants: 1}, list[0])
	assert.Equal(t, RoomInfo{MeetingID: "m2", Participants: 2}, list[1])
}

func TestPublishReportsDropped(t *testing.T) {
	m, _, conns := newManager(t, "a", "b")
	_, _ = m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	_, _ = m.Join("m1", participant("b", "Bob"), joinFrames("b"))
	conns["b"].Limit = len(conns["b"].Frames())

	room, _ := m.Get("m1")
	res, err := room.Publish("a", true, func(sender domain.Participant, ok bool) core.Frame {
		assert.True(t, ok)
		assert.Equal(t, "Alice", sender.Name)
		return core.MustEncode(core.EvChatMessage, core.ChatMessage{From: sender.Name, Message: "hi"})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []domain.ConnID{"b"}, res.Dropped)

	res, err = room.Publish("a", false, func(domain.Participant, bool) core.Frame { return nil })
	require.NoError(t, err)
	assert.Zero(t, res.SendTo)
}

func TestAddDelegateIsIdempotent(t *testing.T) {
	m, _, conns := newManager(t, "a")
	_, _ = m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	room, _ := m.Get("m1")
	conns["a"].Reset()

	announce := func() core.Frame { return core.MustEncode(core.EvChatMessage, core.ChatMessage{IsSystem: true}) }
	added, res, err := room.AddDelegate(domain.Delegate{Name: "Alice"}, announce)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, res.SendTo)

	added, _, err = room.AddDelegate(domain.Delegate{Name: "Alice", Style: "other"}, announce)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Len(t, room.Delegates(), 1)
	assert.Len(t, conns["a"].OfType(core.EvChatMessage), 1)
}

func TestConcurrentJoinLeave(t *testing.T) {
	const n = 32
	ids := make([]domain.ConnID, n)
	for i := range ids {
		ids[i] = domain.ConnID(fmt.Sprintf("c%02d", i))
	}
	m, reg, conns := newManager(t, ids...)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		emptied int
	)
	for round := 0; round < 20; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := m.Join("busy", participant(id, string(id)), joinFrames(id)); err != nil {
					t.Errorf("join %s: %v", id, err)
					return
				}
				if !reg.Detach(id, "busy") {
					return
				}
				for _, r := range m.Leave(id, []domain.MeetingID{"busy"}, leftFrame(id)) {
					if r.Emptied {
						mu.Lock()
						emptied++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
		_, live := m.Get("busy")
		assert.False(t, live, "room must be gone once everyone left")
	}
	assert.GreaterOrEqual(t, emptied, 20)

	// Every joiner saw its own snapshot before anything else.
	for _, id := range ids {
		assert.Equal(t, core.EvRoomInfo, conns[id].Types()[0])
	}
}

func TestJoinLosesAgainstDisconnect(t *testing.T) {
	m, reg, _ := newManager(t, "a")
	reg.Unbind("a")
	_, err := m.Join("m1", participant("a", "Alice"), joinFrames("a"))
	assert.ErrorIs(t, err, ErrConnGone)
	_, ok := m.Get("m1")
	assert.False(t, ok)
}
