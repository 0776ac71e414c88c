package app

import (
	"context"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPresence(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", testutil.NewRecordingConn(), nil)
	r.Bind("c2", testutil.NewRecordingConn(), nil)

	r.Register("c1", "")
	_, ok := r.Resolve("")
	assert.False(t, ok)

	r.Register("c1", "alice")
	id, ok := r.Resolve("alice")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("c1"), id)
	uid, ok := r.UserOf("c1")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), uid)

	// Last registration wins.
	r.Register("c2", "alice")
	id, _ = r.Resolve("alice")
	assert.Equal(t, domain.ConnID("c2"), id)

	r.Unregister("c2")
	_, ok = r.Resolve("alice")
	assert.False(t, ok)
}

func TestRegistrySend(t *testing.T) {
	r := NewRegistry()
	sig := testutil.NewRecordingConn()
	r.Bind("c1", sig, nil)

	require.NoError(t, r.Send("c1", core.MustEncode(core.EvPong, nil)))
	assert.Equal(t, []string{core.EvPong}, sig.Types())

	assert.ErrorIs(t, r.Send("nobody", core.MustEncode(core.EvPong, nil)), ErrUnknownConn)

	sig.Limit = 1
	assert.ErrorIs(t, r.Send("c1", core.MustEncode(core.EvPong, nil)), core.ErrBackpressure)
}

func TestRegistryIndex(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", testutil.NewRecordingConn(), nil)

	assert.True(t, r.Attach("c1", "m2"))
	assert.True(t, r.Attach("c1", "m1"))
	assert.True(t, r.Attach("c1", "m1"))
	assert.Equal(t, []domain.MeetingID{"m1", "m2"}, r.MeetingsOf("c1"))

	assert.True(t, r.Detach("c1", "m2"))
	assert.False(t, r.Detach("c1", "m2"))
	assert.Equal(t, []domain.MeetingID{"m1"}, r.MeetingsOf("c1"))

	assert.Equal(t, []domain.MeetingID{"m1"}, r.DetachAll("c1"))
	assert.Empty(t, r.MeetingsOf("c1"))

	assert.False(t, r.Attach("ghost", "m1"))
}

func TestRegistryUnbind(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", testutil.NewRecordingConn(), nil)
	r.Register("c1", "alice")
	r.Attach("c1", "m1")
	r.Attach("c1", "m0")

	assert.Equal(t, []domain.MeetingID{"m0", "m1"}, r.Unbind("c1"))
	assert.Nil(t, r.Unbind("c1"))
	assert.Equal(t, 0, r.Count())

	_, ok := r.Resolve("alice")
	assert.False(t, ok)
	assert.False(t, r.Attach("c1", "m2"), "attach after unbind must fail")
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	sig := testutil.NewRecordingConn()
	ctx, cancel := context.WithCancel(context.Background())
	r.Bind("c1", sig, cancel)

	assert.True(t, r.Cancel("c1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, sig.Closed())
	assert.False(t, r.Cancel("ghost"))
}
