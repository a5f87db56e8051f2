package observer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/session-service/internal/domain"
)

// Generator is the external text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Rooms is the coordinator surface the scheduler evaluates against.
type Rooms interface {
	ActiveRooms() []string
	RoomTail(roomID string, n int) ([]domain.Message, int)
	PostObserverMessage(roomID, text string) (domain.Message, bool)
}

// PromptSource resolves a room's template prompt; failures degrade to an
// empty prompt.
type PromptSource interface {
	PromptForRoom(ctx context.Context, roomID string) (string, error)
}

type Config struct {
	Interval     time.Duration // periodic tick, default 30s
	MinMessages  int           // tick gate, default 3
	PromptWindow int           // messages fed to the prompt, default 8
	MaxReplyLen  int           // replies at or above are dropped, default 500
	GenTimeout   time.Duration // bound on one Generate call, default 15s

	// RequireMinOnTrigger applies the MinMessages gate to explicit "@ai"
	// triggers too. Off by default: a manual mention always evaluates.
	RequireMinOnTrigger bool
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MinMessages <= 0 {
		c.MinMessages = 3
	}
	if c.PromptWindow <= 0 {
		c.PromptWindow = 8
	}
	if c.MaxReplyLen <= 0 {
		c.MaxReplyLen = 500
	}
	if c.GenTimeout <= 0 {
		c.GenTimeout = 15 * time.Second
	}
}

// Scheduler drives the observer: a periodic sweep over live rooms plus an
// explicit trigger path. Rooms are evaluated independently so one slow
// generation call never delays another room.
type Scheduler struct {
	cfg     Config
	gen     Generator
	rooms   Rooms
	prompts PromptSource // optional

	triggerCh chan string

	mu         sync.Mutex
	evaluating map[string]bool // per-room latch
}

func NewScheduler(cfg Config, gen Generator, rooms Rooms, prompts PromptSource) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		cfg:        cfg,
		gen:        gen,
		rooms:      rooms,
		prompts:    prompts,
		triggerCh:  make(chan string, 64),
		evaluating: make(map[string]bool),
	}
}

// Trigger requests an immediate evaluation for one room. Non-blocking; when
// the queue is full the request is dropped (the periodic tick will catch up).
func (s *Scheduler) Trigger(roomID string) {
	select {
	case s.triggerCh <- roomID:
	default:
		slog.Debug("observer trigger queue full", "room", roomID)
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, roomID := range s.rooms.ActiveRooms() {
				go s.Evaluate(ctx, roomID, false)
			}
		case roomID := <-s.triggerCh:
			go s.Evaluate(ctx, roomID, true)
		}
	}
}

// Evaluate runs one evaluate-and-maybe-reply pass for a room. Overlapping
// evaluations of the same room collapse into one.
func (s *Scheduler) Evaluate(ctx context.Context, roomID string, triggered bool) {
	s.mu.Lock()
	if s.evaluating[roomID] {
		s.mu.Unlock()
		return
	}
	s.evaluating[roomID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.evaluating, roomID)
		s.mu.Unlock()
	}()

	tail, total := s.rooms.RoomTail(roomID, s.cfg.PromptWindow)
	if len(tail) == 0 {
		return
	}
	if (!triggered || s.cfg.RequireMinOnTrigger) && total < s.cfg.MinMessages {
		return
	}
	// Never chain on our own reply.
	if tail[len(tail)-1].ParticipantID == domain.ObserverID {
		return
	}

	var templatePrompt string
	if s.prompts != nil {
		p, err := s.prompts.PromptForRoom(ctx, roomID)
		if err != nil {
			slog.Debug("template prompt lookup failed", "room", roomID, "err", err)
		} else {
			templatePrompt = p
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenTimeout)
	defer cancel()

	reply, err := s.gen.Generate(genCtx, BuildPrompt(roomID, templatePrompt, tail))
	if err != nil {
		// Generation failures are local: log and treat as no reply.
		slog.Warn("observer generation failed", "room", roomID, "err", err)
		return
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || strings.HasPrefix(reply, NoReplySentinel) || len(reply) >= s.cfg.MaxReplyLen {
		return
	}

	if msg, ok := s.rooms.PostObserverMessage(roomID, reply); ok {
		slog.Info("observer replied", "room", roomID, "len", len(msg.Text))
	}
}
