package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/novatra/novabot/internal/bot"
	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/review"
)

const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// CommandFunc handles one slash command.
type CommandFunc func(ctx context.Context, i *Interaction)

// ComponentFunc handles a component or modal interaction on a live review.
// arg is whatever follows the routed prefix of the custom id.
type ComponentFunc func(ctx context.Context, i *Interaction, s *review.Session, arg string)

// EventFunc handles one gateway dispatch.
type EventFunc func(ctx context.Context, evt *GatewayEvent)

// Handler owns the single event loop. Gateway events and the results of
// background work are processed on it one at a time, so review sessions are
// only touched from the loop goroutine.
type Handler struct {
	app          *bot.App
	api          *Client
	gateway      *GatewayClient
	guildID      string
	allowedRoles map[string]bool

	commands   map[string]CommandFunc
	components map[string]ComponentFunc
	events     map[string][]EventFunc

	// Loop-owned state.
	applicationID string
	botUserID     string
	busy          map[int64]bool

	inbox    chan func(context.Context)
	async    func(func())
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewHandler creates the Discord front end. gw may be nil when events are
// fed through Dispatch.
func NewHandler(cfg *Config, app *bot.App, api *Client, gw *GatewayClient) *Handler {
	allowed := make(map[string]bool)
	for _, id := range cfg.AllowedRoleIDs {
		allowed[id] = true
	}

	h := &Handler{
		app:           app,
		api:           api,
		gateway:       gw,
		guildID:       cfg.GuildID,
		allowedRoles:  allowed,
		commands:      make(map[string]CommandFunc),
		components:    make(map[string]ComponentFunc),
		events:        make(map[string][]EventFunc),
		applicationID: cfg.ApplicationID,
		busy:          make(map[int64]bool),
		inbox:         make(chan func(context.Context), 64),
		now:           time.Now,
		stopCh:        make(chan struct{}),
		log:           logging.WithComponent("discord.handler"),
	}
	h.async = h.goAsync

	h.Subscribe(EventReady, h.onReady)
	h.Subscribe(EventInteractionCreate, h.onInteraction)
	h.Subscribe(EventMessageCreate, h.onShipped)

	h.Command(todoCommand.Name, h.handleTodo)
	h.registerReviewActions()

	if reg := app.Registry(); reg != nil {
		reg.OnEvict(h.onEvict)
	}
	return h
}

// Command routes a slash command name to fn.
func (h *Handler) Command(name string, fn CommandFunc) {
	h.commands[name] = fn
}

// Component routes a custom id (or its "prefix:" for parameterized ids) to fn.
func (h *Handler) Component(customID string, fn ComponentFunc) {
	h.components[customID] = fn
}

// Subscribe appends fn to the handlers of a dispatch event type.
func (h *Handler) Subscribe(eventType string, fn EventFunc) {
	h.events[eventType] = append(h.events[eventType], fn)
}

// StartListening connects and runs the event loop until ctx ends or Stop is
// called, reconnecting with backoff when the connection drops.
func (h *Handler) StartListening(ctx context.Context) error {
	if h.gateway == nil {
		return fmt.Errorf("no gateway configured")
	}

	backoff := minBackoff
	for {
		if err := h.gateway.Connect(ctx); err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return err
			}
			h.log.Warn("Gateway connect failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
		} else {
			events, err := h.gateway.Listen(ctx)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			backoff = minBackoff
			h.log.Info("Discord handler listening for events")

			if stopped := h.loop(ctx, events); stopped {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := h.gateway.Err(); IsFatal(err) {
				return fmt.Errorf("gateway closed: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// loop processes events and posted work until the stream ends. It reports
// whether Stop was called.
func (h *Handler) loop(ctx context.Context, events <-chan GatewayEvent) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-h.stopCh:
			return true
		case fn := <-h.inbox:
			fn(ctx)
		case evt, ok := <-events:
			if !ok {
				h.log.Info("Discord event stream ended")
				return false
			}
			h.Dispatch(ctx, &evt)
		}
	}
}

// Stop ends the loop and waits for background work.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.gateway != nil {
			_ = h.gateway.Close()
		}
	})
	h.wg.Wait()
}

// Dispatch runs every subscriber of evt in registration order.
func (h *Handler) Dispatch(ctx context.Context, evt *GatewayEvent) {
	for _, fn := range h.events[evt.T] {
		fn(ctx, evt)
	}
}

// post queues fn to run on the loop.
func (h *Handler) post(fn func(context.Context)) {
	select {
	case h.inbox <- fn:
	case <-h.stopCh:
	}
}

// drain runs queued work; the loop does this itself, tests call it.
func (h *Handler) drain(ctx context.Context) {
	for {
		select {
		case fn := <-h.inbox:
			fn(ctx)
		default:
			return
		}
	}
}

func (h *Handler) goAsync(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

func (h *Handler) onReady(ctx context.Context, evt *GatewayEvent) {
	var ready Ready
	if err := json.Unmarshal(evt.D, &ready); err != nil {
		h.log.Warn("Failed to parse READY", slog.Any("error", err))
		return
	}
	h.botUserID = ready.User.ID
	if h.applicationID == "" {
		h.applicationID = ready.Application.ID
	}
	h.log.Info("Bot ready", slog.String("user", ready.User.Username), slog.String("application_id", h.applicationID))

	if err := h.api.BulkOverwriteCommands(ctx, h.applicationID, h.guildID, Commands()); err != nil {
		h.log.Error("Failed to register commands", slog.Any("error", err))
	}
}

func (h *Handler) onInteraction(ctx context.Context, evt *GatewayEvent) {
	var i Interaction
	if err := json.Unmarshal(evt.D, &i); err != nil {
		h.log.Warn("Failed to parse INTERACTION_CREATE", slog.Any("error", err))
		return
	}

	switch i.Type {
	case InteractionApplicationCmd:
		fn, ok := h.commands[i.Data.Name]
		if !ok {
			h.reply(ctx, &i, "Unknown command.")
			return
		}
		fn(ctx, &i)
	case InteractionMessageComponent, InteractionModalSubmit:
		h.routeComponent(ctx, &i)
	}
}

func (h *Handler) routeComponent(ctx context.Context, i *Interaction) {
	id := i.Data.CustomID
	fn, arg := h.components[id], ""
	if fn == nil {
		if cut := strings.LastIndex(id, ":"); cut > 0 {
			fn, arg = h.components[id[:cut+1]], id[cut+1:]
		}
	}
	if fn == nil {
		h.log.Debug("Unrouted component", slog.String("custom_id", id))
		return
	}

	var msgID int64
	if i.Message != nil {
		msgID = ParseSnowflake(i.Message.ID)
	}
	s, ok := h.app.Session(msgID)
	if !ok {
		h.reply(ctx, i, "This review has expired.")
		return
	}
	if h.busy[msgID] {
		h.reply(ctx, i, "An upload is still running for this review.")
		return
	}

	h.log.Debug("Review interaction",
		slog.String("custom_id", id),
		slog.Int64("message_id", msgID),
		slog.String("user_id", i.Invoker().ID))
	fn(ctx, i, s, arg)
}

// onEvict strips the controls of a review whose session expired. It runs on
// the sweeper goroutine and only reads immutable session metadata.
func (h *Handler) onEvict(messageID int64, s *review.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	none := []Component{}
	channel := FormatSnowflake(s.Meta().OutputChannelID)
	if err := h.api.EditMessage(ctx, channel, FormatSnowflake(messageID), MessageEdit{Components: &none}); err != nil {
		h.log.Warn("Failed to strip expired review controls", slog.Int64("message_id", messageID), slog.Any("error", err))
	}
}

// respond sends an interaction callback, logging failures.
func (h *Handler) respond(ctx context.Context, i *Interaction, resp InteractionResponse) {
	if err := h.api.CreateInteractionResponse(ctx, i.ID, i.Token, resp); err != nil {
		h.log.Warn("Interaction response failed", slog.Int("type", resp.Type), slog.Any("error", err))
	}
}

// reply answers with an ephemeral notice.
func (h *Handler) reply(ctx context.Context, i *Interaction, content string) {
	h.respond(ctx, i, InteractionResponse{
		Type: ResponseChannelMessage,
		Data: &InteractionResponseData{Content: content, Flags: FlagEphemeral},
	})
}

// followup posts after a deferred response.
func (h *Handler) followup(ctx context.Context, i *Interaction, content string, ephemeral bool) {
	data := InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = FlagEphemeral
	}
	appID := i.ApplicationID
	if appID == "" {
		appID = h.applicationID
	}
	if _, err := h.api.CreateFollowupMessage(ctx, appID, i.Token, data); err != nil {
		h.log.Warn("Followup failed", slog.Any("error", err))
	}
}
