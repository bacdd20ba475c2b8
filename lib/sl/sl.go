package sl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Secret keeps the first 5 characters of value; for an email only the
// first letter of the local part and the domain stay visible
func Secret(key, value string) slog.Attr {
	if value == "" {
		return slog.String(key, "?")
	}
	if local, domain, ok := strings.Cut(value, "@"); ok && local != "" {
		return slog.String(key, fmt.Sprintf("%s***@%s", local[:1], domain))
	}
	r := "***"
	if len(value) > 5 {
		r = value[0:5] + "***"
	}
	return slog.String(key, r)
}

func Module(mod string) slog.Attr {
	return slog.String("mod", mod)
}

func Owner(username string) slog.Attr {
	return slog.String("owner", username)
}

func Invoice(id string) slog.Attr {
	return slog.String("invoice", id)
}

// RequestId reads the id set by chi middleware.RequestID
func RequestId(ctx context.Context) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(ctx))
}
