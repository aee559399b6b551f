package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tasks"
)

var (
	// ErrInvalidLimit is returned for message limits outside [25, 500].
	ErrInvalidLimit = errors.New("message limit must be between 25 and 500")
	// ErrNoModel is reported when no completion client is configured.
	ErrNoModel = errors.New("no model configured")
	// ErrHistory wraps failures reading channel history.
	ErrHistory = errors.New("fetch history")
)

// Store is the persistence the engine needs.
type Store interface {
	GetLastMessageID(ctx context.Context, channelID int64) (int64, error)
	SetLastMessageID(ctx context.Context, channelID, messageID int64) error
	CreateBatch(ctx context.Context, in store.BatchInput) (int64, error)
	SaveTasks(ctx context.Context, candidates []tasks.Candidate, batchID, channelID, userID int64) ([]tasks.Task, error)
}

// Request describes one /todo run.
type Request struct {
	GuildID         int64
	ChannelID       int64
	TargetChannelID int64
	User            User
	Limit           int
}

// Result summarizes a run. Scanned counts the messages that went into the
// transcript, Fetched every message read after the watermark.
type Result struct {
	CorrelationID string
	Fetched       int
	Scanned       int
	Found         int
	BatchID       int64
	Tasks         []tasks.Task
	// ModelErr is set when the completion failed. The run still succeeds
	// with zero tasks.
	ModelErr error
}

// Engine runs the extraction pipeline.
type Engine struct {
	history HistorySource
	model   Completer
	store   Store
}

// NewEngine creates an extraction engine. model may be nil, in which case
// every run finds zero tasks.
func NewEngine(history HistorySource, model Completer, st Store) *Engine {
	return &Engine{
		history: history,
		model:   model,
		store:   st,
	}
}

// Run executes one extraction: read the watermark, fetch and filter history,
// ask the model, then persist a batch with its tasks and advance the
// watermark to the newest message read, bot-authored ones included.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateLimit(req.Limit); err != nil {
		return nil, err
	}
	if req.TargetChannelID == 0 {
		req.TargetChannelID = req.ChannelID
	}

	res := &Result{CorrelationID: uuid.New().String()}
	ctx = logging.ContextWithCorrelationID(ctx, res.CorrelationID)
	log := logging.WithContext(ctx).With(
		slog.String("component", "extract"),
		slog.Int64("channel_id", req.ChannelID),
	)

	after, err := e.store.GetLastMessageID(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	messages, newest, err := FetchMessages(ctx, e.history, req.ChannelID, after, req.Limit)
	if err != nil {
		return nil, err
	}
	res.Fetched = len(messages)
	for i := range messages {
		if messages[i].GuildID == 0 {
			messages[i].GuildID = req.GuildID
		}
	}
	if len(messages) == 0 {
		// A window of only bot or empty messages still moves the watermark
		// past them.
		if newest > after {
			if err := e.store.SetLastMessageID(ctx, req.ChannelID, newest); err != nil {
				return nil, err
			}
		}
		log.Info("No new messages since watermark", slog.Int64("after", after), slog.Int64("newest", newest))
		return res, nil
	}

	filtered := FilterForUser(messages, req.User)
	res.Scanned = len(filtered)
	transcript, index := BuildContext(filtered, messages)

	raw, modelErr := GenerateTodoList(ctx, e.model, transcript, req.User)
	if modelErr != nil {
		res.ModelErr = modelErr
		log.Warn("Model call failed, continuing with no tasks", slog.Any("error", modelErr))
	}
	candidates := PrepareTasks(raw, index, req.User.ID)

	first, last := messages[0], messages[len(messages)-1]
	batchID, err := e.store.CreateBatch(ctx, store.BatchInput{
		UserID:          req.User.ID,
		SourceChannelID: req.ChannelID,
		TargetChannelID: req.TargetChannelID,
		MessageStartID:  first.ID,
		MessageEndID:    last.ID,
		MessageCount:    len(messages),
	})
	if err != nil {
		return nil, err
	}
	res.BatchID = batchID

	saved, err := e.store.SaveTasks(ctx, candidates, batchID, req.ChannelID, req.User.ID)
	if err != nil {
		return nil, err
	}
	res.Tasks = saved
	res.Found = len(saved)

	if err := e.store.SetLastMessageID(ctx, req.ChannelID, newest); err != nil {
		return nil, err
	}

	log.Info("Extraction complete",
		slog.Int("fetched", res.Fetched),
		slog.Int("scanned", res.Scanned),
		slog.Int("candidates", len(candidates)),
		slog.Int("found", res.Found),
		slog.Int64("batch_id", batchID),
	)
	return res, nil
}
