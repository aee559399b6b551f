// Package extract turns a window of channel history into ranked, deduplicated
// task candidates for one user and persists them as a review batch.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/novatra/novabot/internal/tasks"
)

// Message limits accepted by /todo.
const (
	MinMessageLimit     = 25
	MaxMessageLimit     = 500
	DefaultMessageLimit = 250

	// fallbackWindow bounds the unfiltered slice used when nothing in the
	// window references the target user.
	fallbackWindow = 80
)

// Message is the chat-platform independent view of one history message.
type Message struct {
	ID                  int64
	GuildID             int64
	ChannelID           int64
	AuthorID            int64
	AuthorUsername      string
	AuthorDisplayName   string
	AuthorDiscriminator string
	AuthorBot           bool
	Content             string
	Attachments         []string
	CreatedAt           time.Time
	MentionIDs          []int64
	// ReferencedAuthorID is the author of the message this one replies to,
	// 0 when it is not a reply or the reference could not be resolved.
	ReferencedAuthorID int64
}

// Permalink returns the message URL.
func (m Message) Permalink() string {
	return tasks.Permalink(m.GuildID, m.ChannelID, m.ID)
}

// User identifies the person whose tasks are extracted.
type User struct {
	ID            int64
	Username      string
	DisplayName   string
	Discriminator string
}

// Handle renders "Display (username#discriminator)".
func (u User) Handle() string {
	display := u.DisplayName
	if display == "" {
		display = u.Username
	}
	disc := u.Discriminator
	if disc == "" {
		disc = "0"
	}
	return fmt.Sprintf("%s (%s#%s)", display, u.Username, disc)
}

// MessageRef is the provenance of an indexed message.
type MessageRef struct {
	ID   int64
	Unix int64
}

// HistorySource reads channel history. With afterID 0 it returns the most
// recent limit messages, otherwise up to limit messages newer than afterID.
type HistorySource interface {
	History(ctx context.Context, channelID, afterID int64, limit int) ([]Message, error)
}

// ValidateLimit rejects message limits outside [MinMessageLimit, MaxMessageLimit].
func ValidateLimit(limit int) error {
	if limit < MinMessageLimit || limit > MaxMessageLimit {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidLimit, limit, MinMessageLimit, MaxMessageLimit)
	}
	return nil
}

// ClampLimit forces limit into the accepted range.
func ClampLimit(limit int) int {
	if limit < MinMessageLimit {
		return MinMessageLimit
	}
	if limit > MaxMessageLimit {
		return MaxMessageLimit
	}
	return limit
}

// FetchMessages reads history after the watermark, drops bot-authored and
// empty messages, and returns the rest oldest first. newest is the highest
// id read before filtering, or afterID when nothing was read.
func FetchMessages(ctx context.Context, src HistorySource, channelID, afterID int64, limit int) (msgs []Message, newest int64, err error) {
	raw, err := src.History(ctx, channelID, afterID, ClampLimit(limit))
	if err != nil {
		return nil, afterID, fmt.Errorf("%w: %w", ErrHistory, err)
	}

	newest = afterID
	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		newest = max(newest, m.ID)
		if m.AuthorBot {
			continue
		}
		if strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0 {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, newest, nil
}

// FilterForUser keeps the messages relevant to user: mentions, name
// substrings, authored messages and replies to the user. When nothing
// matches, the first min(80, N) messages are returned instead.
func FilterForUser(messages []Message, user User) []Message {
	username := strings.ToLower(user.Username)
	display := strings.ToLower(user.DisplayName)

	var filtered []Message
	for _, m := range messages {
		if relevantTo(m, user, username, display) {
			filtered = append(filtered, m)
		}
	}

	if len(filtered) == 0 {
		n := min(fallbackWindow, len(messages))
		filtered = append(filtered, messages[:n]...)
	}
	return filtered
}

func relevantTo(m Message, user User, username, display string) bool {
	for _, id := range m.MentionIDs {
		if id == user.ID {
			return true
		}
	}
	content := strings.ToLower(m.Content)
	if username != "" && strings.Contains(content, username) {
		return true
	}
	if display != "" && strings.Contains(content, display) {
		return true
	}
	if m.AuthorID == user.ID {
		return true
	}
	return m.ReferencedAuthorID != 0 && m.ReferencedAuthorID == user.ID
}

// FormatLine renders one transcript line.
func FormatLine(m Message) string {
	content := strings.TrimSpace(m.Content)
	if content == "" && len(m.Attachments) > 0 {
		content = "Attachments: " + strings.Join(m.Attachments, ", ")
	}
	author := User{
		Username:      m.AuthorUsername,
		DisplayName:   m.AuthorDisplayName,
		Discriminator: m.AuthorDiscriminator,
	}.Handle()
	return fmt.Sprintf("[%s] %s [Message: %s]: %s",
		m.CreatedAt.UTC().Format("2006-01-02 15:04"), author, m.Permalink(), content)
}

// BuildContext renders the transcript of the filtered messages and indexes
// every fetched message by permalink, so that links the model returns can be
// resolved even when they point outside the filtered set.
func BuildContext(filtered, all []Message) (string, map[string]MessageRef) {
	lines := make([]string, 0, len(filtered))
	for _, m := range filtered {
		lines = append(lines, FormatLine(m))
	}

	index := make(map[string]MessageRef, len(all))
	for _, m := range all {
		index[m.Permalink()] = MessageRef{ID: m.ID, Unix: m.CreatedAt.Unix()}
	}
	return strings.Join(lines, "\n"), index
}
