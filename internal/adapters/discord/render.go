package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/tasks"
)

// Custom ids of review controls. The edit modal id carries the position:
// "review:edit_modal:<pos>".
const (
	idPrev       = "review:prev"
	idNext       = "review:next"
	idSelect     = "review:select"
	idApprove    = "review:approve"
	idReject     = "review:reject"
	idEdit       = "review:edit"
	idApprovePg  = "review:approve_page"
	idRejectPg   = "review:reject_page"
	idUpload     = "review:upload"
	idClose      = "review:close"
	idEditModal  = "review:edit_modal"
	modalText    = "text"
	modalPrio    = "priority"
	maxTaskChars = 300
)

const (
	colorReview = 0x5865F2
	colorClosed = 0x99AAB5
	colorEmpty  = 0x0099FF
)

var statusEmoji = map[tasks.Status]string{
	tasks.StatusPending:   "⏳",
	tasks.StatusApproved:  "✅",
	tasks.StatusRejected:  "❌",
	tasks.StatusUploaded:  "📤",
	tasks.StatusFailed:    "⚠️",
	tasks.StatusCompleted: "🏁",
}

// ReviewEmbed renders a review view.
func ReviewEmbed(v *review.View, now time.Time) Embed {
	var sb strings.Builder
	if v.Empty() {
		sb.WriteString("No tasks in this batch.")
	}
	for _, r := range v.Rows {
		marker := ""
		if r.Selected {
			marker = "▶ "
		}
		fmt.Fprintf(&sb, "%s**%d.** %s %s\n", marker, r.Position, r.Priority.Emoji(), tasks.Truncate(r.Text, maxTaskChars))
		fmt.Fprintf(&sb, "%s %s · %s", statusEmoji[r.Status], r.Status, r.Priority.Label())
		if r.SourceLink != "" {
			fmt.Fprintf(&sb, " · [source](%s)", r.SourceLink)
		}
		if r.IssueURL != "" {
			fmt.Fprintf(&sb, " · [issue](%s)", r.IssueURL)
		}
		sb.WriteString("\n\n")
	}
	if v.Closed {
		sb.WriteString("*Review closed.*")
	}

	e := Embed{
		Title:       v.Title,
		Description: strings.TrimSpace(sb.String()),
		Color:       colorReview,
		Footer:      &EmbedFooter{Text: v.Footer()},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if v.Closed {
		e.Color = colorClosed
	}
	if summary := v.CountSummary(); summary != "" {
		e.Fields = []EmbedField{{Name: "Status", Value: summary}}
	}
	return e
}

// ReviewComponents renders the controls of a view. Closed views have none.
func ReviewComponents(v *review.View) []Component {
	if v.Closed {
		return []Component{}
	}

	var rows []Component
	if len(v.Rows) > 0 {
		opts := make([]SelectOption, 0, len(v.Rows))
		for _, r := range v.Rows {
			opts = append(opts, SelectOption{
				Label:       tasks.Truncate(fmt.Sprintf("%d. %s", r.Position, r.Text), 100),
				Value:       strconv.Itoa(r.Position),
				Description: fmt.Sprintf("%s · %s", r.Status, r.Priority.Label()),
				Default:     r.Selected,
			})
		}
		rows = append(rows, actionRow(Component{
			Type:        ComponentStringSelect,
			CustomID:    idSelect,
			Placeholder: "Select a task",
			Options:     opts,
		}))
	}

	selectedLocked := true
	for _, r := range v.Rows {
		if r.Selected {
			selectedLocked = r.Locked
		}
	}

	rows = append(rows,
		actionRow(
			button(idPrev, "◀ Prev", ButtonSecondary, v.Page <= 1),
			button(idNext, "Next ▶", ButtonSecondary, v.Page >= v.TotalPages),
			button(idApprove, "Approve", ButtonSuccess, selectedLocked),
			button(idReject, "Reject", ButtonDanger, selectedLocked),
			button(idEdit, "Edit", ButtonSecondary, selectedLocked),
		),
		actionRow(
			button(idApprovePg, "Approve page", ButtonSuccess, !v.PageHasActionable()),
			button(idRejectPg, "Reject page", ButtonDanger, !v.PageHasActionable()),
			button(idUpload, "Upload to Linear", ButtonPrimary, v.Counts[tasks.StatusApproved] == 0),
			button(idClose, "Close", ButtonSecondary, false),
		),
	)
	return rows
}

// EditModal renders the edit form for the task at pos.
func EditModal(pos int, t tasks.Task) *InteractionResponseData {
	components := []Component{
		actionRow(Component{
			Type:      ComponentTextInput,
			CustomID:  modalText,
			Style:     TextInputParagraph,
			Label:     "Task",
			Value:     t.Text,
			Required:  true,
			MinLength: 1,
			MaxLength: 1000,
		}),
		actionRow(Component{
			Type:        ComponentTextInput,
			CustomID:    modalPrio,
			Style:       TextInputShort,
			Label:       "Priority",
			Value:       strings.ToLower(t.Priority.Label()),
			Placeholder: "urgent, high, medium or low",
			MaxLength:   20,
		}),
	}
	return &InteractionResponseData{
		CustomID:   fmt.Sprintf("%s:%d", idEditModal, pos),
		Title:      fmt.Sprintf("Edit task #%d", pos),
		Components: &components,
	}
}

// NoTasksEmbed is posted instead of a review when a run finds nothing.
func NoTasksEmbed(displayName, provider string, now time.Time) Embed {
	return Embed{
		Title:       fmt.Sprintf("📋 No Tasks Found for %s", displayName),
		Description: "No new tasks were identified in the recent messages.",
		Color:       colorEmpty,
		Footer:      &EmbedFooter{Text: "Generated by " + provider},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}

// ScanSummary is the follow-up sent to the /todo invoker.
func ScanSummary(scanned, found int, sourceID, userID, targetID int64) string {
	return fmt.Sprintf("📋 Scanned %d messages in <#%d> and found %d tasks for <@%d>. Review them in <#%d> and upload approved tasks to Linear.",
		scanned, sourceID, found, userID, targetID)
}

// UploadNotice summarizes an upload for the clicking user.
func UploadNotice(s review.UploadSummary) string {
	switch {
	case s.Attempted == 0:
		return "No approved tasks to upload."
	case s.Failed == 0:
		return fmt.Sprintf("📤 Uploaded %d task(s) to Linear.", s.Uploaded)
	default:
		return fmt.Sprintf("📤 Uploaded %d of %d task(s) to Linear; %d failed.", s.Uploaded, s.Attempted, s.Failed)
	}
}

func actionRow(children ...Component) Component {
	return Component{Type: ComponentActionRow, Components: children}
}

func button(customID, label string, style int, disabled bool) Component {
	return Component{
		Type:     ComponentButton,
		CustomID: customID,
		Label:    label,
		Style:    style,
		Disabled: disabled,
	}
}
