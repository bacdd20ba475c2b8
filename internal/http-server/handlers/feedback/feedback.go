package feedback

import (
	"context"
	"invisifeed/entity"
	"invisifeed/lib/api/cont"
	"invisifeed/lib/api/response"
	"invisifeed/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type Core interface {
	GetFeedbacks(ctx context.Context, query *entity.FeedbackQuery) (*entity.FeedbackPage, error)
	SubmitFeedback(ctx context.Context, req *entity.FeedbackRequest) (*entity.Feedback, error)
}

// List returns one page of the authenticated owner's feedback
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.feedback"),
			sl.RequestId(r.Context()),
		)

		var query entity.FeedbackQuery
		if err := render.Bind(r, &query); err != nil {
			logger.Info("bind request", sl.Err(err))
			response.Render(w, r, response.Invalid(err))
			return
		}
		username, err := cont.Resolve(r.Context(), query.Username)
		if err != nil {
			logger.Warn("resolve owner", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		query.Username = username

		page, err := handler.GetFeedbacks(r.Context(), &query)
		if err != nil {
			logger.With(sl.Owner(username)).Log(r.Context(), response.Level(err), "get feedbacks", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(page))
	}
}

// Submit is the public endpoint behind the invoice QR code
func Submit(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.feedback"),
			sl.RequestId(r.Context()),
		)

		var req entity.FeedbackRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Info("bind request", sl.Err(err))
			response.Render(w, r, response.Invalid(err))
			return
		}
		logger = logger.With(sl.Owner(req.Username), sl.Invoice(req.InvoiceId))

		feedback, err := handler.SubmitFeedback(r.Context(), &req)
		if err != nil {
			logger.Log(r.Context(), response.Level(err), "submit feedback", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(feedback))
	}
}
