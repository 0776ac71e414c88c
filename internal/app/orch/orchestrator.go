// Package orch implements the meeting hub operations on top of the
// connection and room registries.
package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

var (
	ErrInvalidMeeting = errors.New("invalid meeting id")
	ErrMeetingLookup  = errors.New("meeting lookup failed")
	ErrNoRoom         = errors.New("meeting is not live")
	ErrNotConnected   = errors.New("connection is not registered")
)

type Deps struct {
	Registry    *app.Registry
	Rooms       *app.RoomManager
	Policy      app.Policy
	Meetings    core.MeetingDirectory
	Transcripts core.TranscriptStore
	Personas    core.PersonaStore
	Generator   core.TextGenerator
}

type Options struct {
	StoreTimeout    time.Duration
	GenerateTimeout time.Duration
	MaxGenerations  int64
	Now             func() time.Time
	// KeepOnEmpty skips meeting-end bookkeeping when a room empties.
	KeepOnEmpty bool
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 30 * time.Second
	}
	if o.MaxGenerations <= 0 {
		o.MaxGenerations = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.RoomManager
	Policy      app.Policy
	Meetings    core.MeetingDirectory
	Transcripts core.TranscriptStore
	Personas    core.PersonaStore
	Generator   core.TextGenerator

	opts    Options
	aiSlots *semaphore.Weighted

	// base outlives individual connections; async tasks derive from it.
	base  context.Context
	stop  context.CancelFunc
	tasks conc.WaitGroup
}

func New(d Deps, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	if d.Registry == nil {
		d.Registry = app.NewRegistry()
	}
	if d.Rooms == nil {
		d.Rooms = app.NewRoomManager(d.Registry)
	}
	if d.Policy == nil {
		d.Policy = app.SimplePolicy{}
	}
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		Registry:    d.Registry,
		Rooms:       d.Rooms,
		Policy:      d.Policy,
		Meetings:    d.Meetings,
		Transcripts: d.Transcripts,
		Personas:    d.Personas,
		Generator:   d.Generator,
		opts:        opts,
		aiSlots:     semaphore.NewWeighted(opts.MaxGenerations),
		base:        base,
		stop:        stop,
	}
}

// Connect binds a new transport session.
func (o *Orchestrator) Connect(conn domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(conn, sig, cancel)
}

// Shutdown waits for in-flight async work, then cancels whatever is left.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.tasks.Wait()
		close(done)
	}()
	defer o.stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every async task started so far has finished.
func (o *Orchestrator) Wait() { o.tasks.Wait() }

// async runs fn off the caller's goroutine with a panic guard.
func (o *Orchestrator) async(name string, fn func(ctx context.Context)) {
	o.tasks.Go(func() {
		var pc panics.Catcher
		pc.Try(func() { fn(o.base) })
		if r := pc.Recovered(); r != nil {
			log.Error().Str("module", "orch").Str("task", name).Str("panic", r.String()).Msg("async task panicked")
		}
	})
}

func (o *Orchestrator) send(conn domain.ConnID, eventType string, payload any) error {
	f, err := core.Encode(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", eventType).Msg("encode")
		return err
	}
	return o.Registry.Send(conn, f)
}

// SendError reports a rejected operation to its originating connection only.
func (o *Orchestrator) SendError(conn domain.ConnID, msg string) {
	if err := o.send(conn, core.EvError, core.ErrorMessage{Message: msg}); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(conn)).Msg("error frame not delivered")
	}
}

// Pong answers a keepalive.
func (o *Orchestrator) Pong(conn domain.ConnID) {
	_ = o.send(conn, core.EvPong, nil)
}

// settle applies the backpressure policy to recipients dropped by a fan-out.
// Called after the room lock is released.
func (o *Orchestrator) settle(meeting domain.MeetingID, res app.PublishResult) {
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(meeting, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("meeting", string(meeting)).Str("conn", string(slow)).Msg("kicking slow consumer")
			o.Registry.Cancel(slow)
		case app.DropFrame, app.NoAction:
			log.Debug().Str("module", "orch").Str("meeting", string(meeting)).Str("conn", string(slow)).Msg("frame dropped")
		}
	}
}
