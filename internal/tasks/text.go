package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var priorityAliases = map[string]Priority{
	"urgent":          PriorityUrgent,
	"high":            PriorityHigh,
	"high_priority":   PriorityHigh,
	"highpriority":    PriorityHigh,
	"medium":          PriorityMedium,
	"medium_priority": PriorityMedium,
	"mediumpriority":  PriorityMedium,
	"low":             PriorityLow,
	"low_priority":    PriorityLow,
	"lowpriority":     PriorityLow,
}

var priorityOrder = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

var messageLinkRe = regexp.MustCompile(`https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/\d+/\d+/\d+`)

// CleanText collapses every whitespace run to a single space and trims the
// ends. An empty result means the text should be discarded.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePriority maps any input onto one of the four priorities.
// Unrecognized and empty values map to DefaultPriority.
func NormalizePriority(value string) Priority {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "_")
	if p, ok := priorityAliases[key]; ok {
		return p
	}
	return DefaultPriority
}

// PriorityRank returns the sort order of a priority, urgent first.
func PriorityRank(value string) int {
	return priorityOrder[NormalizePriority(value)]
}

// Rank is PriorityRank for an already typed priority.
func (p Priority) Rank() int {
	return PriorityRank(string(p))
}

// Label returns the display name of a priority.
func (p Priority) Label() string {
	switch NormalizePriority(string(p)) {
	case PriorityUrgent:
		return "Urgent"
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return "Medium"
	}
}

// Emoji returns the marker shown next to a priority in review views.
func (p Priority) Emoji() string {
	switch NormalizePriority(string(p)) {
	case PriorityUrgent:
		return "🔴"
	case PriorityHigh:
		return "🟠"
	case PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// AllPriorities lists the priorities in rank order.
func AllPriorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

// ExtractMessageLink returns the first Discord message permalink in text,
// or "" if there is none.
func ExtractMessageLink(text string) string {
	if text == "" {
		return ""
	}
	return messageLinkRe.FindString(text)
}

// ExtractMessageID parses the trailing numeric segment of a permalink.
// It returns false for malformed input.
func ExtractMessageID(link string) (int64, bool) {
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	if link == "" {
		return 0, false
	}
	idx := strings.LastIndex(link, "/")
	id, err := strconv.ParseInt(link[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Permalink builds the Discord URL of a message.
func Permalink(guildID, channelID, messageID int64) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

// DedupeKey returns the stable identity of a task: the hex SHA-256 of
// "{user}|{source message or 0}|{cleaned lowercase text}".
func DedupeKey(userID, sourceMessageID int64, text string) string {
	normalized := strings.ToLower(CleanText(text))
	raw := fmt.Sprintf("%d|%d|%s", userID, sourceMessageID, normalized)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Truncate shortens s to at most max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}
