package invoice

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
	SendInvoiceEmail(ctx context.Context, username string, req *entity.InvoiceEmailRequest) (*entity.Message, error)
	RedeemCoupon(ctx context.Context, username string, req *entity.RedeemCouponRequest) (*entity.Coupon, error)
}

func Email(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.invoice")
		logger := log.With(
			mod,
			sl.RequestId(r.Context()),
		)

		var req entity.InvoiceEmailRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Info("bind request", sl.Err(err))
			response.Render(w, r, response.Invalid(err))
			return
		}
		username, err := cont.Resolve(r.Context(), req.Username)
		if err != nil {
			logger.Warn("resolve owner", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		logger = logger.With(
			sl.Owner(username),
			sl.Invoice(req.InvoiceNumber),
			sl.Secret("to", req.CustomerEmail),
		)

		msg, err := handler.SendInvoiceEmail(r.Context(), username, &req)
		if err != nil {
			logger.Log(r.Context(), response.Level(err), "send invoice email", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(msg))
	}
}

func RedeemCoupon(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.invoice")
		logger := log.With(
			mod,
			sl.RequestId(r.Context()),
		)

		var req entity.RedeemCouponRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Info("bind request", sl.Err(err))
			response.Render(w, r, response.Invalid(err))
			return
		}
		username, err := cont.Resolve(r.Context(), req.Username)
		if err != nil {
			logger.Warn("resolve owner", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		logger = logger.With(sl.Owner(username), sl.Invoice(req.InvoiceId))

		coupon, err := handler.RedeemCoupon(r.Context(), username, &req)
		if err != nil {
			logger.Log(r.Context(), response.Level(err), "redeem coupon", sl.Err(err))
			response.Render(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(coupon))
	}
}
