package widget

import (
	"context"
	"sync"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/logger"
)

const defaultRating = 3

// RateMessage stores a 1-5 star rating for the bot message id, keeping its
// helpful flag.
func (w *Widget) RateMessage(ctx context.Context, id int64, rating int) error {
	if rating < 1 || rating > stars {
		return ErrSkipped
	}
	return w.submitFeedback(ctx, id, func(cur Feedback) Feedback {
		cur.Rating = rating
		return cur
	})
}

// MarkHelpful stores the helpful flag for the bot message id. The rating
// sent along is the current one, or 3 when the message is unrated.
func (w *Widget) MarkHelpful(ctx context.Context, id int64, helpful bool) error {
	return w.submitFeedback(ctx, id, func(cur Feedback) Feedback {
		if cur.Rating == 0 {
			cur.Rating = defaultRating
		}
		h := helpful
		cur.IsHelpful = &h
		return cur
	})
}

// submitFeedback sends the edited feedback of one message. Edits to the same
// message are serialized so the control ends on the value the server saw
// last. The control only changes after the server accepts the value.
func (w *Widget) submitFeedback(ctx context.Context, id int64, edit func(Feedback) Feedback) error {
	if !w.opts.FeedbackEnabled {
		return ErrSkipped
	}

	lock := w.feedbackLock(id)
	lock.Lock()
	defer lock.Unlock()

	w.mu.Lock()
	b := w.findBotMessage(id)
	if b == nil {
		w.mu.Unlock()
		return ErrSkipped
	}
	var cur Feedback
	if b.message.Feedback != nil {
		cur = *b.message.Feedback
	}
	w.mu.Unlock()

	next := edit(cur)
	err := w.api.SubmitFeedback(ctx, bankapi.FeedbackRequest{
		MessageID: id,
		Rating:    next.Rating,
		IsHelpful: next.IsHelpful,
		Comment:   next.Comment,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		// The message may have been cleared while the request was out.
		if b := w.findBotMessage(id); b != nil {
			b.message.Feedback = &next
			b.html = w.renderMessage(b.message)
		}
		w.notify(NoticeSuccess, w.loc.FeedbackSaved)
		logger.DebugCF("widget", "Feedback saved", map[string]interface{}{
			"message_id": id,
			"rating":     next.Rating,
		})
	case bankapi.IsUnauthorized(err):
		w.setUnauthorized()
		w.notify(NoticeError, w.loc.ReauthRequired)
	default:
		w.notify(NoticeError, w.loc.FeedbackFailed)
		logger.WarnCF("widget", "Feedback failed", map[string]interface{}{
			"message_id": id,
			"error":      err.Error(),
		})
	}
	w.changed()
	return err
}

func (w *Widget) feedbackLock(id int64) *sync.Mutex {
	l, _ := w.feedbackLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}
