package discord

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/novatra/novabot/internal/review"
)

// viewAction adapts a session operation that returns a fresh view.
func (h *Handler) viewAction(op func(ctx context.Context, s *review.Session) (*review.View, error)) ComponentFunc {
	return func(ctx context.Context, i *Interaction, s *review.Session, _ string) {
		v, err := op(ctx, s)
		h.update(ctx, i, v, err)
	}
}

func (h *Handler) registerReviewActions() {
	h.Component(idPrev, h.viewAction(func(_ context.Context, s *review.Session) (*review.View, error) {
		return s.PrevPage()
	}))
	h.Component(idNext, h.viewAction(func(_ context.Context, s *review.Session) (*review.View, error) {
		return s.NextPage()
	}))
	h.Component(idApprove, h.viewAction(func(ctx context.Context, s *review.Session) (*review.View, error) {
		return s.Approve(ctx, s.Selected())
	}))
	h.Component(idReject, h.viewAction(func(ctx context.Context, s *review.Session) (*review.View, error) {
		return s.Reject(ctx, s.Selected())
	}))
	h.Component(idApprovePg, h.viewAction(func(ctx context.Context, s *review.Session) (*review.View, error) {
		return s.ApprovePage(ctx)
	}))
	h.Component(idRejectPg, h.viewAction(func(ctx context.Context, s *review.Session) (*review.View, error) {
		return s.RejectPage(ctx)
	}))
	h.Component(idSelect, h.selectTask)
	h.Component(idEdit, h.openEditor)
	h.Component(idEditModal+":", h.submitEdit)
	h.Component(idUpload, h.upload)
	h.Component(idClose, h.closeReview)
}

func (h *Handler) selectTask(ctx context.Context, i *Interaction, s *review.Session, _ string) {
	if len(i.Data.Values) == 0 {
		h.reply(ctx, i, "Select a task first.")
		return
	}
	pos, err := strconv.Atoi(i.Data.Values[0])
	if err != nil {
		h.reply(ctx, i, "Select a task first.")
		return
	}
	v, err := s.Select(pos)
	h.update(ctx, i, v, err)
}

func (h *Handler) openEditor(ctx context.Context, i *Interaction, s *review.Session, _ string) {
	pos := s.Selected()
	t, err := s.Task(pos)
	if err != nil {
		h.notice(ctx, i, err)
		return
	}
	if t.Status.IsTerminal() {
		h.notice(ctx, i, review.ErrLocked)
		return
	}
	h.respond(ctx, i, InteractionResponse{Type: ResponseModal, Data: EditModal(pos, t)})
}

func (h *Handler) submitEdit(ctx context.Context, i *Interaction, s *review.Session, arg string) {
	pos, err := strconv.Atoi(arg)
	if err != nil {
		h.notice(ctx, i, review.ErrInvalidPosition)
		return
	}
	text := i.Data.ModalValue(modalText)
	priority := i.Data.ModalValue(modalPrio)
	v, err := s.Edit(ctx, pos, text, priority)
	h.update(ctx, i, v, err)
}

// upload acknowledges at once, exports off the loop, then edits the review
// and tells the clicker how it went. The session is marked busy meanwhile so
// no other interaction touches it.
func (h *Handler) upload(ctx context.Context, i *Interaction, s *review.Session, _ string) {
	msgID := ParseSnowflake(i.Message.ID)
	h.respond(ctx, i, InteractionResponse{Type: ResponseDeferredUpdateMessage})
	h.busy[msgID] = true

	requester := i.Invoker().DisplayName()
	h.log.Info("Uploading approved tasks", slog.Int64("batch_id", s.Meta().BatchID), slog.String("requested_by", requester))

	h.async(func() {
		v, sum, err := s.UploadApproved(ctx)
		h.post(func(ctx context.Context) {
			delete(h.busy, msgID)
			if v != nil {
				comps := ReviewComponents(v)
				edit := MessageEdit{Embeds: []Embed{ReviewEmbed(v, h.now())}, Components: &comps}
				if err := h.api.EditMessage(ctx, i.ChannelID, i.Message.ID, edit); err != nil {
					h.log.Warn("Failed to refresh review after upload", slog.Any("error", err))
				}
			}
			notice := UploadNotice(sum)
			if err != nil {
				h.log.Error("Upload finished with errors", slog.Any("error", err))
				notice += " Some results could not be saved."
			}
			h.followup(ctx, i, notice, true)
		})
	})
}

func (h *Handler) closeReview(ctx context.Context, i *Interaction, s *review.Session, _ string) {
	v := s.Close()
	h.app.Forget(ParseSnowflake(i.Message.ID))
	h.update(ctx, i, v, nil)
}

// update re-renders the review in place, or answers with an ephemeral
// notice when the action was rejected.
func (h *Handler) update(ctx context.Context, i *Interaction, v *review.View, err error) {
	if err != nil {
		h.notice(ctx, i, err)
		return
	}
	comps := ReviewComponents(v)
	h.respond(ctx, i, InteractionResponse{
		Type: ResponseUpdateMessage,
		Data: &InteractionResponseData{
			Embeds:     []Embed{ReviewEmbed(v, h.now())},
			Components: &comps,
		},
	})
}

func (h *Handler) notice(ctx context.Context, i *Interaction, err error) {
	var msg string
	switch {
	case errors.Is(err, review.ErrInvalidPosition):
		msg = "Select a task first."
	case errors.Is(err, review.ErrEmptyText):
		msg = "Task text cannot be empty."
	case errors.Is(err, review.ErrLocked):
		msg = "That task was already uploaded or completed and can't be changed."
	case errors.Is(err, review.ErrClosed):
		msg = "This review has expired."
	default:
		h.log.Error("Review action failed", slog.Any("error", err))
		msg = "Something went wrong updating the review."
	}
	h.reply(ctx, i, msg)
}
