// Package bot wires the ingestion filter, transition table, trigger scheduler
// and brain persistence into a single chat message handler.
//
// Each call to Handle runs filter → learn → count → save → maybe generate
// inside one critical section, so overlapping deliveries can neither lose
// table updates nor interleave writes of the brain document. Posting the
// generated sentence happens after the lock is released.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/markov-chatter/brain"
	"github.com/onnwee/markov-chatter/markov"
	"github.com/onnwee/markov-chatter/telemetry"
)

// Message is one inbound chat line.
type Message struct {
	ID      string
	Channel string
	Author  string
	Text    string
}

// Poster sends a line to chat.
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// Identity resolves the account name the bot posts as.
type Identity interface {
	AccountName(ctx context.Context) (string, error)
}

// StaticIdentity is an Identity with a fixed name.
type StaticIdentity string

func (s StaticIdentity) AccountName(context.Context) (string, error) { return string(s), nil }

// VerdictNoIdentity marks messages skipped because the bot's own account
// name could not be resolved.
const VerdictNoIdentity markov.Verdict = "no_identity"

// Outcome describes what Handle did with a message.
type Outcome struct {
	Verdict   markov.Verdict
	Learned   int
	Triggered bool
	Sentence  string
	Posted    bool
}

// Stats is a point-in-time view of the bot state.
type Stats struct {
	Loaded        bool      `json:"loaded"`
	Backend       string    `json:"backend"`
	Keys          int       `json:"keys"`
	Successors    int       `json:"successors"`
	Counter       int       `json:"counter"`
	GenerateEvery int       `json:"generate_every"`
	MaxWords      int       `json:"max_words"`
	LastSave      time.Time `json:"last_save"`
	LastSaveError string    `json:"last_save_error,omitempty"`
}

// Bot owns the transition table and message counter.
type Bot struct {
	filter   *markov.Filter
	gen      *markov.Generator
	brain    *brain.Manager
	identity Identity
	poster   Poster
	maxWords int

	mu      sync.Mutex
	table   *markov.Table
	loaded  bool
	trigger *Trigger
}

// Option configures a Bot.
type Option func(*Bot)

// WithGenerateEvery sets the trigger threshold.
func WithGenerateEvery(n int) Option {
	return func(b *Bot) { b.trigger = NewTrigger(n) }
}

// WithMaxWords bounds generated sentences.
func WithMaxWords(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.maxWords = n
		}
	}
}

// WithGenerator replaces the default randomly seeded generator.
func WithGenerator(g *markov.Generator) Option {
	return func(b *Bot) { b.gen = g }
}

// New builds a Bot. The brain is not read until the first accepted message.
// poster may be nil, in which case generated sentences are only logged.
func New(filter *markov.Filter, mgr *brain.Manager, identity Identity, poster Poster, opts ...Option) *Bot {
	b := &Bot{
		filter:   filter,
		brain:    mgr,
		identity: identity,
		poster:   poster,
		maxWords: markov.DefaultMaxWords,
		trigger:  NewTrigger(DefaultGenerateEvery),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.gen == nil {
		b.gen = markov.NewGenerator(nil)
	}
	return b
}

// SetPoster swaps the outbound sink; the chat bridge installs itself once connected.
func (b *Bot) SetPoster(p Poster) {
	b.mu.Lock()
	b.poster = p
	b.mu.Unlock()
}

// Handle processes one inbound message to completion.
func (b *Bot) Handle(ctx context.Context, msg Message) Outcome {
	telemetry.Inc(telemetry.MessagesReceived)
	ctx, span := telemetry.StartSpan(ctx, "chatter-bot", "bot.handle", telemetry.ChannelAttr(msg.Channel))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx)

	account, err := b.identity.AccountName(ctx)
	if err != nil {
		// without our own name the self filter cannot work; skip rather than learn our own output
		log.Warn("bot account name unavailable; skipping message", slog.Any("err", err), slog.String("component", "bot"))
		telemetry.RecordError(span, err)
		telemetry.IncRejected(string(VerdictNoIdentity))
		return Outcome{Verdict: VerdictNoIdentity}
	}

	var out Outcome
	var poster Poster
	start := time.Now()
	func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		out.Verdict = b.filter.Check(msg.Text, msg.Author, account)
		if !out.Verdict.Accepted() {
			return
		}
		b.ensureLoaded(ctx)
		out.Learned = b.table.Learn(msg.Text)
		out.Triggered = b.trigger.Tick()
		telemetry.SetTriggerCounter(b.trigger.Count())

		// always persist; a failed save is already logged and the next one catches up
		_ = b.brain.Save(ctx, b.table)

		if out.Triggered {
			telemetry.Inc(telemetry.Generations)
			out.Sentence = b.gen.Generate(b.table, b.maxWords)
			if out.Sentence == "" {
				telemetry.Inc(telemetry.EmptyGenerations)
			}
		}
		poster = b.poster
	}()

	if !out.Verdict.Accepted() {
		telemetry.IncRejected(string(out.Verdict))
		span.SetAttributes(telemetry.VerdictAttr(string(out.Verdict)))
		log.Debug("ignoring message", slog.String("reason", string(out.Verdict)), slog.String("author", msg.Author), slog.String("component", "bot"))
		return out
	}
	telemetry.Inc(telemetry.MessagesAccepted)
	telemetry.ObserveSince(telemetry.HandleDuration, start)
	span.SetAttributes(telemetry.VerdictAttr("accepted"))

	if out.Sentence == "" {
		return out
	}
	if poster == nil {
		log.Info("generated sentence (no poster configured)", slog.String("sentence", out.Sentence), slog.String("component", "bot"))
		return out
	}
	if err := poster.Post(ctx, msg.Channel, out.Sentence); err != nil {
		telemetry.Inc(telemetry.PostsFailed)
		telemetry.RecordError(span, err)
		log.Warn("failed to post generated sentence", slog.Any("err", err), slog.String("channel", msg.Channel), slog.String("component", "bot"))
		return out
	}
	telemetry.Inc(telemetry.PostsSucceeded)
	out.Posted = true
	log.Info("posted generated sentence", slog.String("channel", msg.Channel), slog.String("sentence", out.Sentence), slog.String("component", "bot"))
	return out
}

// ensureLoaded hydrates the table on first use. Callers hold b.mu.
func (b *Bot) ensureLoaded(ctx context.Context) {
	if b.loaded {
		return
	}
	// Load already logged any failure and returned an empty table
	b.table, _ = b.brain.Load(ctx)
	b.loaded = true
}

// Preview generates a sentence without posting it or touching the counter.
func (b *Bot) Preview(ctx context.Context) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLoaded(ctx)
	return b.gen.Generate(b.table, b.maxWords)
}

// Save forces a brain write.
func (b *Bot) Save(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLoaded(ctx)
	return b.brain.Save(ctx, b.table)
}

// Stats reports table size, trigger position and persistence state. It does
// not force a load.
func (b *Bot) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{
		Loaded:        b.loaded,
		Backend:       b.brain.Backend(),
		Counter:       b.trigger.Count(),
		GenerateEvery: b.trigger.Threshold(),
		MaxWords:      b.maxWords,
	}
	if b.table != nil {
		s.Keys = b.table.Len()
		s.Successors = b.table.SuccessorCount()
	}
	last, err := b.brain.LastSave()
	s.LastSave = last
	if err != nil {
		s.LastSaveError = err.Error()
	}
	return s
}
