// Package bot holds the application context shared by every front end: the
// store, the extraction engine, the tracker exporter, the review registry and
// the cooldown limiter.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/novatra/novabot/internal/extract"
	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/ratelimit"
	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tasks"
)

// Options tunes an App.
type Options struct {
	// Provider labels generated embeds, e.g. "OpenRouter".
	Provider string
	PageSize int
}

// App is constructed once at startup and passed to every component.
type App struct {
	store    *store.Store
	engine   *extract.Engine
	exporter review.Exporter
	registry *review.Registry
	limiter  ratelimit.Limiter
	provider string
	pageSize int
	log      *slog.Logger
}

// New creates the application context. limiter may be nil to disable the
// cooldown.
func New(st *store.Store, engine *extract.Engine, exp review.Exporter, reg *review.Registry, limiter ratelimit.Limiter, opts Options) *App {
	if opts.PageSize <= 0 {
		opts.PageSize = review.DefaultPageSize
	}
	if opts.Provider == "" {
		opts.Provider = "OpenRouter"
	}
	return &App{
		store:    st,
		engine:   engine,
		exporter: exp,
		registry: reg,
		limiter:  limiter,
		provider: opts.Provider,
		pageSize: opts.PageSize,
		log:      logging.WithComponent("bot"),
	}
}

// Store returns the task store.
func (a *App) Store() *store.Store { return a.store }

// Registry returns the live review sessions.
func (a *App) Registry() *review.Registry { return a.registry }

// Provider returns the label used in embed footers.
func (a *App) Provider() string { return a.provider }

// ExtractionRequest is one /todo invocation.
type ExtractionRequest struct {
	GuildID         int64
	ChannelID       int64
	TargetChannelID int64
	User            extract.User
	Limit           int
}

// Summary reports an extraction run to the caller.
type Summary struct {
	CorrelationID string
	Fetched       int
	Scanned       int
	Found         int
	BatchID       int64
	Tasks         []tasks.Task
	ModelErr      error
}

// RunExtraction runs the pipeline for one request. A zero Limit uses the
// default.
func (a *App) RunExtraction(ctx context.Context, req ExtractionRequest) (*Summary, error) {
	if req.Limit == 0 {
		req.Limit = extract.DefaultMessageLimit
	}
	ctx = logging.ContextWithGuild(ctx, req.GuildID)
	ctx = logging.ContextWithUser(ctx, req.User.ID)

	res, err := a.engine.Run(ctx, extract.Request{
		GuildID:         req.GuildID,
		ChannelID:       req.ChannelID,
		TargetChannelID: req.TargetChannelID,
		User:            req.User,
		Limit:           req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &Summary{
		CorrelationID: res.CorrelationID,
		Fetched:       res.Fetched,
		Scanned:       res.Scanned,
		Found:         res.Found,
		BatchID:       res.BatchID,
		Tasks:         res.Tasks,
		ModelErr:      res.ModelErr,
	}, nil
}

// RenderReview opens a review session over a stored batch. Zero fields of
// meta are filled from the batch record.
func (a *App) RenderReview(ctx context.Context, batchID int64, meta review.Meta) (*review.Session, error) {
	batch, err := a.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", batchID, err)
	}

	meta.BatchID = batchID
	if meta.UserID == 0 {
		meta.UserID = batch.UserID
	}
	if meta.OutputChannelID == 0 {
		meta.OutputChannelID = batch.TargetChannelID
	}
	if meta.UserName == "" {
		meta.UserName = strconv.FormatInt(batch.UserID, 10)
	}
	if meta.Provider == "" {
		meta.Provider = a.provider
	}

	ctx = logging.ContextWithBatch(ctx, batchID)
	s, err := review.NewSession(ctx, a.store, a.exporter, meta, a.pageSize)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Debug("Review session opened", slog.Int("tasks", s.Len()))
	return s, nil
}

// Track registers a rendered session under its message id.
func (a *App) Track(messageID int64, s *review.Session) {
	if a.registry != nil {
		a.registry.Put(messageID, s)
	}
}

// Session returns the live session rendered as messageID.
func (a *App) Session(messageID int64) (*review.Session, bool) {
	if a.registry == nil {
		return nil, false
	}
	return a.registry.Get(messageID)
}

// Forget drops a rendered session.
func (a *App) Forget(messageID int64) {
	if a.registry != nil {
		a.registry.Remove(messageID)
	}
}

// Cooldown reports whether userID may run /todo now. Limiter failures let
// the call through.
func (a *App) Cooldown(ctx context.Context, userID int64) (bool, time.Duration) {
	if a.limiter == nil {
		return true, 0
	}
	ok, retry, err := a.limiter.Allow(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		a.log.Warn("Cooldown check failed, allowing", slog.Int64("user_id", userID), slog.Any("error", err))
		return true, 0
	}
	return ok, retry
}

// MarkShipped marks every active task extracted from channelID completed.
func (a *App) MarkShipped(ctx context.Context, channelID int64) (int64, error) {
	n, err := a.store.MarkChannelTasksCompleted(ctx, channelID)
	if err != nil {
		return 0, err
	}
	a.log.Info("Tasks marked completed", slog.Int64("channel_id", channelID), slog.Int64("count", n))
	return n, nil
}
