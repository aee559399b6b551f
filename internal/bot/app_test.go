package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/novatra/novabot/internal/extract"
	"github.com/novatra/novabot/internal/ratelimit"
	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tasks"
)

const (
	guildID   int64 = 7
	channelID int64 = 300
	outputID  int64 = 400
)

var alice = extract.User{ID: 42, Username: "alice", DisplayName: "Alice"}

// restHistory mimics the Discord REST API, which omits guild ids.
type restHistory struct{ messages []extract.Message }

func (h *restHistory) History(_ context.Context, _ int64, afterID int64, limit int) ([]extract.Message, error) {
	var out []extract.Message
	for _, m := range h.messages {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type staticModel struct{ reply string }

func (m staticModel) Complete(context.Context, string, string) (string, error) {
	return m.reply, nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

func newApp(t *testing.T, reply string, limiter ratelimit.Limiter) *App {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	history := &restHistory{messages: []extract.Message{
		{ID: 1001, ChannelID: channelID, AuthorID: 42, AuthorUsername: "alice", Content: "I'll fix the login bug", CreatedAt: base},
		{ID: 1002, ChannelID: channelID, AuthorID: 9, AuthorUsername: "bob", Content: "@alice can you ship the docs?", MentionIDs: []int64{42}, CreatedAt: base.Add(time.Minute)},
	}}
	engine := extract.NewEngine(history, staticModel{reply: reply}, st)
	return New(st, engine, nil, review.NewRegistry(time.Minute, nil), limiter, Options{})
}

func TestRunExtractionAndRender(t *testing.T) {
	reply := `{"tasks":[
		{"description":"Fix the login bug","priority":"high","message_link":"` + tasks.Permalink(guildID, channelID, 1001) + `"},
		{"description":"Ship the docs","priority":"low","message_link":""}]}`
	app := newApp(t, reply, nil)
	ctx := context.Background()

	sum, err := app.RunExtraction(ctx, ExtractionRequest{
		GuildID:         guildID,
		ChannelID:       channelID,
		TargetChannelID: outputID,
		User:            alice,
	})
	if err != nil {
		t.Fatalf("RunExtraction failed: %v", err)
	}
	if sum.Fetched != 2 || sum.Found != 2 || sum.BatchID == 0 || sum.CorrelationID == "" {
		t.Fatalf("summary = %+v", sum)
	}
	if got := sum.Tasks[0]; got.SourceMessageID != 1001 {
		t.Errorf("first task source = %d, want 1001 (guild id filled from request)", got.SourceMessageID)
	}

	s, err := app.RenderReview(ctx, sum.BatchID, review.Meta{UserName: "Alice"})
	if err != nil {
		t.Fatalf("RenderReview failed: %v", err)
	}
	meta := s.Meta()
	if meta.UserID != alice.ID || meta.OutputChannelID != outputID || meta.Provider != "OpenRouter" {
		t.Errorf("meta = %+v", meta)
	}
	if s.Len() != 2 {
		t.Errorf("session tasks = %d, want 2", s.Len())
	}

	app.Track(555, s)
	if got, ok := app.Session(555); !ok || got != s {
		t.Error("tracked session not found")
	}
	app.Forget(555)
	if _, ok := app.Session(555); ok {
		t.Error("forgotten session still found")
	}
}

func TestRunExtractionInvalidLimit(t *testing.T) {
	app := newApp(t, `{"tasks":[]}`, nil)
	_, err := app.RunExtraction(context.Background(), ExtractionRequest{ChannelID: channelID, User: alice, Limit: 24})
	if !errors.Is(err, extract.ErrInvalidLimit) {
		t.Errorf("error = %v, want ErrInvalidLimit", err)
	}
}

func TestRenderReviewUnknownBatch(t *testing.T) {
	app := newApp(t, `{"tasks":[]}`, nil)
	if _, err := app.RenderReview(context.Background(), 99, review.Meta{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMarkShipped(t *testing.T) {
	app := newApp(t, `{"tasks":[{"description":"Fix it","priority":"medium"}]}`, nil)
	ctx := context.Background()

	if _, err := app.RunExtraction(ctx, ExtractionRequest{GuildID: guildID, ChannelID: channelID, User: alice}); err != nil {
		t.Fatalf("RunExtraction failed: %v", err)
	}
	n, err := app.MarkShipped(ctx, channelID)
	if err != nil || n != 1 {
		t.Errorf("MarkShipped = %d, %v; want 1", n, err)
	}
	if n, _ := app.MarkShipped(ctx, channelID); n != 0 {
		t.Errorf("second MarkShipped = %d, want 0", n)
	}
}

func TestCooldown(t *testing.T) {
	ctx := context.Background()

	app := newApp(t, "", ratelimit.NewMemory(time.Minute))
	if ok, _ := app.Cooldown(ctx, 1); !ok {
		t.Error("first call should pass")
	}
	if ok, retry := app.Cooldown(ctx, 1); ok || retry <= 0 {
		t.Errorf("second call = %v, %v; want refused with retry", ok, retry)
	}

	if ok, _ := newApp(t, "", failingLimiter{}).Cooldown(ctx, 1); !ok {
		t.Error("limiter errors should fail open")
	}
	if ok, _ := newApp(t, "", nil).Cooldown(ctx, 1); !ok {
		t.Error("nil limiter should allow")
	}
}
