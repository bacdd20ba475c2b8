package account

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
	SignUp(ctx context.Context, req *entity.SignUpRequest) (*entity.Message, error)
	SignIn(ctx context.Context, req *entity.SignInRequest) (*entity.SignInResult, error)
	VerifyCode(ctx context.Context, req *entity.VerifyRequest) (*entity.Message, error)
	Me(ctx context.Context, username string) (*entity.Owner, error)
	UpdateProfile(ctx context.Context, username string, req *entity.ProfileRequest) (*entity.Message, error)
	ResetData(ctx context.Context, username string) (*entity.Message, error)
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.account"),
		sl.RequestId(r.Context()),
	)
}

func failed(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.Log(r.Context(), response.Level(err), msg, sl.Err(err))
	response.Render(w, r, err)
}

func SignUp(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.SignUpRequest
		if err := render.Bind(r, &req); err != nil {
			failed(w, r, logger, "bind request", response.Invalid(err))
			return
		}
		logger = logger.With(sl.Owner(req.Username), sl.Secret("email", req.Email))

		msg, err := handler.SignUp(r.Context(), &req)
		if err != nil {
			failed(w, r, logger, "sign up", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(msg))
	}
}

func SignIn(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.SignInRequest
		if err := render.Bind(r, &req); err != nil {
			failed(w, r, logger, "bind request", response.Invalid(err))
			return
		}
		logger = logger.With(sl.Secret("identifier", req.Identifier))

		result, err := handler.SignIn(r.Context(), &req)
		if err != nil {
			failed(w, r, logger, "sign in", err)
			return
		}
		logger.With(sl.Owner(result.Owner.Username)).Debug("signed in")
		render.JSON(w, r, response.Ok(result))
	}
}

func Verify(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.VerifyRequest
		if err := render.Bind(r, &req); err != nil {
			failed(w, r, logger, "bind request", response.Invalid(err))
			return
		}
		logger = logger.With(sl.Owner(req.Username))

		msg, err := handler.VerifyCode(r.Context(), &req)
		if err != nil {
			failed(w, r, logger, "verify code", err)
			return
		}
		render.JSON(w, r, response.Ok(msg))
	}
}

func Me(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		username, err := cont.Resolve(r.Context(), "")
		if err != nil {
			failed(w, r, logger, "resolve owner", err)
			return
		}
		owner, err := handler.Me(r.Context(), username)
		if err != nil {
			failed(w, r, logger.With(sl.Owner(username)), "get owner", err)
			return
		}
		render.JSON(w, r, response.Ok(owner))
	}
}

func Profile(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		username, err := cont.Resolve(r.Context(), "")
		if err != nil {
			failed(w, r, logger, "resolve owner", err)
			return
		}
		logger = logger.With(sl.Owner(username))

		var req entity.ProfileRequest
		if err = render.Bind(r, &req); err != nil {
			failed(w, r, logger, "bind request", response.Invalid(err))
			return
		}
		msg, err := handler.UpdateProfile(r.Context(), username, &req)
		if err != nil {
			failed(w, r, logger, "update profile", err)
			return
		}
		render.JSON(w, r, response.Ok(msg))
	}
}

// Reset accepts an optional {username} body that must match the token
func Reset(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.UsernameRequest
		if r.ContentLength != 0 {
			if err := render.Bind(r, &req); err != nil {
				failed(w, r, logger, "bind request", response.Invalid(err))
				return
			}
		}
		username, err := cont.Resolve(r.Context(), req.Username)
		if err != nil {
			failed(w, r, logger, "resolve owner", err)
			return
		}
		msg, err := handler.ResetData(r.Context(), username)
		if err != nil {
			failed(w, r, logger.With(sl.Owner(username)), "reset data", err)
			return
		}
		render.JSON(w, r, response.Ok(msg))
	}
}
