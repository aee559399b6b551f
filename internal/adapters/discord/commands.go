package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/novatra/novabot/internal/bot"
	"github.com/novatra/novabot/internal/extract"
	"github.com/novatra/novabot/internal/review"
)

const (
	msgDenied       = "You don't have permission to use this command."
	msgLimit        = "Message limit must be between 25 and 500."
	msgForbidden    = "Bot does not have permission to read message history in this channel."
	msgFetchFailed  = "Failed to fetch messages for analysis."
	msgSaveFailed   = "Failed to save the extracted tasks."
	msgNoNew        = "No new messages to analyze since last check."
	shippedReaction = "✅"
)

var todoCommand = ApplicationCommand{
	Name:        "todo",
	Description: "Generate a todo list from recent messages using AI",
	Options: []CommandOption{
		{Type: OptionUser, Name: "user", Description: "Whose tasks to extract (defaults to you)"},
		{Type: OptionChannel, Name: "output_channel", Description: "Where to post the review (defaults to this channel)"},
		{
			Type:        OptionInteger,
			Name:        "message_limit",
			Description: "How many recent messages to scan (25-500, default 250)",
			MinValue:    intPtr(extract.MinMessageLimit),
			MaxValue:    intPtr(extract.MaxMessageLimit),
		},
	},
}

// Commands lists the application commands registered on READY.
func Commands() []ApplicationCommand {
	return []ApplicationCommand{todoCommand}
}

func intPtr(v int) *int { return &v }

// hasAllowedRole gates /todo on the configured roles. With none configured
// everyone may run it; outside a guild nobody may.
func (h *Handler) hasAllowedRole(i *Interaction) bool {
	if len(h.allowedRoles) == 0 {
		return true
	}
	if i.Member == nil {
		return false
	}
	for _, r := range i.Member.Roles {
		if h.allowedRoles[r] {
			return true
		}
	}
	return false
}

func (h *Handler) handleTodo(ctx context.Context, i *Interaction) {
	invoker := i.Invoker()
	if !h.hasAllowedRole(i) {
		h.reply(ctx, i, msgDenied)
		return
	}

	if ok, retry := h.app.Cooldown(ctx, ParseSnowflake(invoker.ID)); !ok {
		secs := int(math.Ceil(retry.Seconds()))
		h.reply(ctx, i, fmt.Sprintf("⏳ This command is on cooldown. Try again in %ds.", secs))
		return
	}

	limit := extract.DefaultMessageLimit
	if o, ok := i.Data.Option("message_limit"); ok {
		if err := json.Unmarshal(o.Value, &limit); err != nil {
			limit = 0
		}
	}

	h.respond(ctx, i, InteractionResponse{Type: ResponseDeferredChannelMessage})

	if err := extract.ValidateLimit(limit); err != nil {
		h.followup(ctx, i, msgLimit, false)
		return
	}

	target := h.targetUser(i)
	req := bot.ExtractionRequest{
		GuildID:         ParseSnowflake(i.GuildID),
		ChannelID:       ParseSnowflake(i.ChannelID),
		TargetChannelID: ParseSnowflake(i.ChannelID),
		User:            target,
		Limit:           limit,
	}
	if o, ok := i.Data.Option("output_channel"); ok {
		var id string
		if err := json.Unmarshal(o.Value, &id); err == nil && ParseSnowflake(id) != 0 {
			req.TargetChannelID = ParseSnowflake(id)
		}
	}

	h.log.Info("/todo invoked",
		slog.String("invoker", invoker.ID),
		slog.Int64("target_user", target.ID),
		slog.Int64("channel_id", req.ChannelID),
		slog.Int("limit", limit))

	h.async(func() {
		sum, err := h.app.RunExtraction(ctx, req)
		h.post(func(ctx context.Context) {
			h.finishTodo(ctx, i, req, sum, err)
		})
	})
}

// targetUser resolves the "user" option, defaulting to the invoker.
func (h *Handler) targetUser(i *Interaction) extract.User {
	o, ok := i.Data.Option("user")
	if !ok || i.Data.Resolved == nil {
		return ToExtractUser(i.Invoker(), i.Member)
	}
	var id string
	if err := json.Unmarshal(o.Value, &id); err != nil {
		return ToExtractUser(i.Invoker(), i.Member)
	}
	u, ok := i.Data.Resolved.Users[id]
	if !ok {
		return ToExtractUser(i.Invoker(), i.Member)
	}
	var member *Member
	if m, ok := i.Data.Resolved.Members[id]; ok {
		member = &m
	}
	return ToExtractUser(u, member)
}

func (h *Handler) finishTodo(ctx context.Context, i *Interaction, req bot.ExtractionRequest, sum *bot.Summary, err error) {
	if err != nil {
		h.log.Error("Extraction failed", slog.Int64("channel_id", req.ChannelID), slog.Any("error", err))
		switch {
		case errors.Is(err, extract.ErrInvalidLimit):
			h.followup(ctx, i, msgLimit, false)
		case errors.Is(err, extract.ErrHistory) && IsForbidden(err):
			h.followup(ctx, i, msgForbidden, false)
		case errors.Is(err, extract.ErrHistory):
			h.followup(ctx, i, msgFetchFailed, false)
		default:
			h.followup(ctx, i, msgSaveFailed, false)
		}
		return
	}

	if sum.Fetched == 0 {
		h.followup(ctx, i, msgNoNew, false)
		return
	}

	target := FormatSnowflake(req.TargetChannelID)
	name := req.User.DisplayName
	if name == "" {
		name = req.User.Username
	}

	if sum.Found == 0 {
		embed := NoTasksEmbed(name, h.app.Provider(), h.now())
		if _, err := h.api.SendMessage(ctx, target, MessageSend{Embeds: []Embed{embed}}); err != nil {
			h.log.Warn("Failed to post empty result", slog.Any("error", err))
		}
	} else if err := h.postReview(ctx, req, name, sum.BatchID); err != nil {
		h.log.Error("Failed to post review", slog.Int64("batch_id", sum.BatchID), slog.Any("error", err))
		h.followup(ctx, i, fmt.Sprintf("Found %d tasks but could not post the review in <#%d>.", sum.Found, req.TargetChannelID), false)
		return
	}

	h.followup(ctx, i, ScanSummary(sum.Scanned, sum.Found, req.ChannelID, req.User.ID, req.TargetChannelID), false)
}

// postReview renders a session over the batch and registers it under the
// posted message.
func (h *Handler) postReview(ctx context.Context, req bot.ExtractionRequest, name string, batchID int64) error {
	s, err := h.app.RenderReview(ctx, batchID, review.Meta{
		UserID:          req.User.ID,
		UserName:        name,
		OutputChannelID: req.TargetChannelID,
	})
	if err != nil {
		return err
	}

	v := s.View()
	msg, err := h.api.SendMessage(ctx, FormatSnowflake(req.TargetChannelID), MessageSend{
		Embeds:     []Embed{ReviewEmbed(v, h.now())},
		Components: ReviewComponents(v),
	})
	if err != nil {
		return err
	}
	h.app.Track(ParseSnowflake(msg.ID), s)
	return nil
}

// IsShippedNotice reports whether text announces shipped work: a GitHub link
// mentioning a commit or pull request.
func IsShippedNotice(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "github.com") {
		return false
	}
	return strings.Contains(lower, "commit") || strings.Contains(lower, "pull") || strings.Contains(lower, "pr")
}

// onShipped marks a channel's tasks completed when someone replies to a bot
// message with a shipped notice.
func (h *Handler) onShipped(ctx context.Context, evt *GatewayEvent) {
	var m Message
	if err := json.Unmarshal(evt.D, &m); err != nil {
		h.log.Warn("Failed to parse MESSAGE_CREATE", slog.Any("error", err))
		return
	}
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.MessageReference == nil || m.MessageReference.MessageID == "" {
		return
	}
	if !IsShippedNotice(m.Content) {
		return
	}

	replied := m.ReferencedMessage
	if replied == nil {
		fetched, err := h.api.GetMessage(ctx, m.ChannelID, m.MessageReference.MessageID)
		if err != nil {
			return
		}
		replied = fetched
	}
	if h.botUserID == "" || replied.Author == nil || replied.Author.ID != h.botUserID {
		return
	}

	if _, err := h.app.MarkShipped(ctx, ParseSnowflake(m.ChannelID)); err != nil {
		h.log.Warn("Failed to mark tasks completed", slog.String("channel_id", m.ChannelID), slog.Any("error", err))
	}
	if err := h.api.AddReaction(ctx, m.ChannelID, replied.ID, shippedReaction); err != nil {
		h.log.Warn("Failed to react to shipped notice", slog.Any("error", err))
	}
}
