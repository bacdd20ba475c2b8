package response

import (
	"errors"
	"fmt"
	"invisifeed/entity"
	"invisifeed/lib/clock"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

// Status maps an error kind to the HTTP status code
func Status(err error) int {
	var rateLimit *entity.RateLimitError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrExpired),
		errors.Is(err, entity.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Failure builds the error envelope; internal details of 5xx errors are not exposed
func Failure(err error) Response {
	var public *entity.PublicError
	if errors.As(err, &public) {
		return Error(public.Message)
	}
	var rateLimit *entity.RateLimitError
	if errors.As(err, &rateLimit) {
		resp := Error(rateLimit.Error())
		resp.Data = map[string]int{"time_left": rateLimit.TimeLeft}
		return resp
	}
	switch Status(err) {
	case http.StatusServiceUnavailable:
		return Error("Service temporarily unavailable, please try again")
	case http.StatusInternalServerError:
		return Error("Internal server error")
	}
	return Error(err.Error())
}

// Level is the log level a handler uses for a failed request
func Level(err error) slog.Level {
	if Status(err) >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Render writes the error envelope with the mapped status code
func Render(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, Status(err))
	render.JSON(w, r, Failure(err))
}

// Invalid marks a request decoding error as a validation failure
func Invalid(err error) error {
	if errors.Is(err, entity.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", entity.ErrValidation, err)
}
