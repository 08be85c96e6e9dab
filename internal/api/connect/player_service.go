// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"net/http"
	"slices"
	"time"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/tome/internal/app/host"
	"github.com/osa030/tome/internal/app/playback"
	"github.com/osa030/tome/internal/app/state"
	"github.com/osa030/tome/internal/domain/track"
	"github.com/osa030/tome/internal/infra/hostrpc"
)

// Player is the part of the playback engine the service reads and queues to.
type Player interface {
	State() playback.State
	Position() time.Duration
	Cursor() int
	Queue() []*track.Track
	Upcoming() []*track.Track
	RemainingDuration() time.Duration
	EnqueueAll(tracks []*track.Track)
}

// Scanner resolves a file or directory into tracks.
type Scanner interface {
	Scan(ctx context.Context, paths ...string) ([]*track.Track, error)
}

// Admitter drops the tracks that may not join the queue.
type Admitter interface {
	Admit(ctx context.Context, tracks, queued []*track.Track) ([]*track.Track, map[string]int)
}

// Emitter delivers host events to their listeners.
type Emitter interface {
	Emit(event string) int
}

// PlayerService implements the PlayerService RPC: the host side of the
// host bridge plus status and enqueue for the control CLI.
type PlayerService struct {
	player  Player
	store   *state.Store
	scanner Scanner
	filters Admitter
	hub     Emitter
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(player Player, store *state.Store, scanner Scanner, filters Admitter, hub Emitter) *PlayerService {
	return &PlayerService{
		player:  player,
		store:   store,
		scanner: scanner,
		filters: filters,
		hub:     hub,
	}
}

// NewPlayerServiceHandler builds the HTTP handler serving svc and returns the
// path to mount it on.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	emit := connect.NewUnaryHandler(hostrpc.PlayerEmitProcedure, svc.Emit, opts...)
	status := connect.NewUnaryHandler(hostrpc.PlayerStatusProcedure, svc.Status, opts...)
	enqueue := connect.NewUnaryHandler(hostrpc.PlayerEnqueueProcedure, svc.Enqueue, opts...)

	return "/" + hostrpc.PlayerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case hostrpc.PlayerEmitProcedure:
			emit.ServeHTTP(w, r)
		case hostrpc.PlayerStatusProcedure:
			status.ServeHTTP(w, r)
		case hostrpc.PlayerEnqueueProcedure:
			enqueue.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// Emit delivers a host event (play, pause, toggle, next, previous).
func (s *PlayerService) Emit(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	event := req.Msg.GetValue()
	if !slices.Contains(host.Events, event) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errUnknownEvent(event))
	}

	if n := s.hub.Emit(event); n == 0 {
		zlog.Warn().Msgf("connect: host event has no listener: event=%s", event)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Status returns the playback snapshot.
func (s *PlayerService) Status(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	snap := s.store.Snapshot()
	pb := host.Playback{Playing: snap.Playing}
	if snap.Track != nil {
		pb.Progress = &snap.CurrentTime
	}

	var current any
	if snap.Track != nil {
		current = host.EncodeTrack(snap.Track)
	}

	status, err := structpb.NewStruct(map[string]any{
		"state":        s.player.State().String(),
		"status":       pb.Status().String(),
		"track":        current,
		"playing":      snap.Playing,
		"loading":      snap.Loading,
		"muted":        snap.Muted,
		"volume":       snap.Volume,
		"position":     s.player.Position().Seconds(),
		"cursor":       s.player.Cursor(),
		"queue_length": len(s.player.Queue()),
		"upcoming":     len(s.player.Upcoming()),
		"remaining":    s.player.RemainingDuration().Seconds(),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(status), nil
}

// Enqueue scans a file or directory and appends the tracks the filters
// admit to the queue. It returns the number queued.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.Int32Value], error) {
	path := req.Msg.GetValue()
	if path == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errEmptyPath)
	}

	tracks, err := s.scanner.Scan(ctx, path)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	admitted, rejected := s.filters.Admit(ctx, tracks, s.player.Queue())
	s.player.EnqueueAll(admitted)
	zlog.Info().Msgf("connect: enqueued: path=%s tracks=%d rejected=%v", path, len(admitted), rejected)

	return connect.NewResponse(wrapperspb.Int32(int32(len(admitted)))), nil
}
