package discord

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/novatra/novabot/internal/extract"
)

// ParseSnowflake parses a Discord id. Empty and malformed ids yield 0.
func ParseSnowflake(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FormatSnowflake renders a Discord id.
func FormatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// History reads channel history through the REST client.
type History struct {
	client *Client
}

// NewHistory creates a history source.
func NewHistory(client *Client) *History {
	return &History{client: client}
}

// History implements extract.HistorySource. With afterID set it pages
// forward from the watermark and returns the oldest limit messages after it;
// otherwise it pages backward and returns the newest limit messages. The
// result is in chronological order.
func (h *History) History(ctx context.Context, channelID, afterID int64, limit int) ([]extract.Message, error) {
	channel := FormatSnowflake(channelID)
	var raw []Message

	cursor := afterID
	for len(raw) < limit {
		q := HistoryQuery{Limit: min(maxHistoryPage, limit-len(raw))}
		if afterID != 0 {
			q.After = FormatSnowflake(cursor)
		} else if cursor != 0 {
			q.Before = FormatSnowflake(cursor)
		}

		page, err := h.client.GetChannelMessages(ctx, channel, q)
		if err != nil {
			return nil, fmt.Errorf("read history of %s: %w", channel, err)
		}
		if len(page) == 0 {
			break
		}
		raw = append(raw, page...)

		for _, m := range page {
			id := ParseSnowflake(m.ID)
			if afterID != 0 && id > cursor {
				cursor = id
			}
			if afterID == 0 && (cursor == 0 || id < cursor) {
				cursor = id
			}
		}
		if len(page) < q.Limit {
			break
		}
	}

	out := make([]extract.Message, 0, len(raw))
	for i := range raw {
		out = append(out, ToExtractMessage(&raw[i], channelID))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ToExtractMessage converts a wire message. channelID is used when the
// payload omits it.
func ToExtractMessage(m *Message, channelID int64) extract.Message {
	out := extract.Message{
		ID:        ParseSnowflake(m.ID),
		GuildID:   ParseSnowflake(m.GuildID),
		ChannelID: ParseSnowflake(m.ChannelID),
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if out.ChannelID == 0 {
		out.ChannelID = channelID
	}
	if m.Author != nil {
		out.AuthorID = ParseSnowflake(m.Author.ID)
		out.AuthorUsername = m.Author.Username
		out.AuthorDisplayName = m.Author.DisplayName()
		out.AuthorDiscriminator = m.Author.Discriminator
		out.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, a.Filename)
	}
	for _, u := range m.Mentions {
		out.MentionIDs = append(out.MentionIDs, ParseSnowflake(u.ID))
	}
	if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		out.ReferencedAuthorID = ParseSnowflake(m.ReferencedMessage.Author.ID)
	}
	return out
}

// ToExtractUser converts a wire user. member may be nil.
func ToExtractUser(u User, member *Member) extract.User {
	display := u.DisplayName()
	if member != nil && member.Nick != "" {
		display = member.Nick
	}
	return extract.User{
		ID:            ParseSnowflake(u.ID),
		Username:      u.Username,
		DisplayName:   display,
		Discriminator: u.Discriminator,
	}
}
