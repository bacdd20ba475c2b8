package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"invisifeed/entity"
	"invisifeed/lib/api/cont"
	"invisifeed/lib/api/response"
	"invisifeed/lib/sl"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
)

// multipart headers and the text fields on top of the file itself
const formOverhead = 64 << 10

type Core interface {
	UploadCount(ctx context.Context, username string) (*entity.UploadStatus, error)
	UploadInvoice(ctx context.Context, req *entity.UploadRequest) (*entity.UploadResult, error)
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.upload"),
		sl.RequestId(r.Context()),
	)
}

func failed(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.Log(r.Context(), response.Level(err), msg, sl.Err(err))
	response.Render(w, r, err)
}

// Count answers GET with ?username= and POST with a {username} body
func Count(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		requested := r.URL.Query().Get("username")
		if r.Method == http.MethodPost && r.ContentLength != 0 {
			var req entity.UsernameRequest
			if err := render.Bind(r, &req); err != nil {
				failed(w, r, logger, "bind request", response.Invalid(err))
				return
			}
			requested = req.Username
		}
		username, err := cont.Resolve(r.Context(), strings.TrimSpace(requested))
		if err != nil {
			failed(w, r, logger, "resolve owner", err)
			return
		}
		logger = logger.With(sl.Owner(username))

		status, err := handler.UploadCount(r.Context(), username)
		if err != nil {
			failed(w, r, logger, "upload count", err)
			return
		}
		render.JSON(w, r, response.Ok(status))
	}
}

// Invoice reads the multipart form: file, username, coupon_data (JSON),
// is_sample_invoice and invoice_number
func Invoice(log *slog.Logger, handler Core, maxFileSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+formOverhead)
		req, err := readForm(r, maxFileSize)
		if err != nil {
			failed(w, r, logger, "read upload form", err)
			return
		}
		username, err := cont.Resolve(r.Context(), req.Username)
		if err != nil {
			failed(w, r, logger, "resolve owner", err)
			return
		}
		req.Username = username
		logger = logger.With(
			sl.Owner(username),
			slog.String("file", req.FileName),
			slog.Int("size", len(req.Data)),
		)

		result, err := handler.UploadInvoice(r.Context(), req)
		if err != nil {
			failed(w, r, logger, "upload invoice", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(result))
	}
}

func readForm(r *http.Request, maxFileSize int64) (*entity.UploadRequest, error) {
	if err := r.ParseMultipartForm(maxFileSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: file exceeds the limit of %d bytes", entity.ErrValidation, maxFileSize)
		}
		return nil, fmt.Errorf("%w: multipart form: %v", entity.ErrValidation, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", entity.ErrValidation)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read file: %v", entity.ErrValidation, err)
	}

	req := &entity.UploadRequest{
		Username:      strings.TrimSpace(r.FormValue("username")),
		FileName:      header.Filename,
		Data:          data,
		InvoiceNumber: r.FormValue("invoice_number"),
	}
	if s := strings.TrimSpace(r.FormValue("is_sample_invoice")); s != "" {
		if req.IsSample, err = strconv.ParseBool(s); err != nil {
			return nil, fmt.Errorf("%w: is_sample_invoice: %v", entity.ErrValidation, err)
		}
	}
	if s := strings.TrimSpace(r.FormValue("coupon_data")); s != "" && s != "null" {
		var coupon entity.CouponData
		if err = json.Unmarshal([]byte(s), &coupon); err != nil {
			return nil, fmt.Errorf("%w: coupon_data: %v", entity.ErrValidation, err)
		}
		req.Coupon = &coupon
	}
	return req, nil
}
