package core

import (
	"context"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/metrics"
	"invisifeed/internal/qr"
	"invisifeed/internal/quota"
	"invisifeed/lib/sl"
	"invisifeed/lib/validate"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const pdfMime = "application/pdf"

// UploadCount reports the daily counter after applying a pending rollover
func (c *Core) UploadCount(ctx context.Context, username string) (*entity.UploadStatus, error) {
	owner, err := c.loadOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	now := c.now()
	counter := owner.UploadCounter
	prevReset := counter.LastDailyReset
	if c.gate.Rollover(&counter, now) {
		c.persistRollover(ctx, username, prevReset, now)
	}
	return c.gate.Status(&counter, now), nil
}

// persistRollover writes a rollover that was not carried by an invoice update,
// only if the stored reset time is still prevReset
func (c *Core) persistRollover(ctx context.Context, username string, prevReset, now time.Time) {
	_, err := c.repo.ResetDailyUploads(ctx, username, prevReset, now)
	if err != nil {
		c.log.With(sl.Owner(username), sl.Err(err)).Warn("persist daily rollover")
	}
}

func (c *Core) UploadInvoice(ctx context.Context, req *entity.UploadRequest) (*entity.UploadResult, error) {
	if c.store == nil {
		return nil, fmt.Errorf("storage not connected")
	}
	log := c.log.With(sl.Owner(req.Username))

	if err := c.checkFile(req.Data); err != nil {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}
	now := c.now()
	coupon, err := entity.NewCoupon(req.Coupon, now)
	if err != nil {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}
	invoiceNumber := strings.TrimSpace(req.InvoiceNumber)
	if invoiceNumber != "" && !validate.InvoiceId(invoiceNumber) {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, fmt.Errorf("%w: invoice number %q", entity.ErrValidation, invoiceNumber)
	}

	unlock, err := c.locker.Lock(ctx, req.Username)
	if err != nil {
		return nil, entity.Transient("lock owner", err)
	}
	defer unlock()

	owner, err := c.loadOwner(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	loaded := owner.UploadCounter
	counter := loaded
	rolled := c.gate.Rollover(&counter, now)

	if err = c.gate.Allow(&counter, now); err != nil {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultRateLimited).Inc()
		log.With(slog.Int("daily_uploads", counter.DailyUploads)).Info("daily upload limit reached")
		return nil, err
	}

	// the rollover must survive even when the upload fails below
	committed := false
	defer func() {
		if rolled && !committed {
			c.persistRollover(ctx, req.Username, loaded.LastDailyReset, now)
		}
	}()

	invoiceId, err := c.invoiceId(owner, invoiceNumber, req.IsSample, now)
	if err != nil {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}

	pdfUrl, err := c.store.Put(ctx, req.Username, invoiceId+".pdf", req.Data)
	if err != nil {
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, entity.Transient("store invoice pdf", err)
	}
	feedbackUrl := c.feedbackUrl(req.Username, invoiceId)
	qrUrl, err := c.storeQr(ctx, req.Username, invoiceId, feedbackUrl)
	if err != nil {
		c.cleanup(ctx, log, pdfUrl)
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, entity.Transient("store qr code", err)
	}

	c.gate.Accept(&counter, now)
	var expect *entity.UploadCounter
	if c.policy == quota.PolicySerialized {
		expect = &loaded
	}
	invoice := entity.NewInvoice(invoiceId, pdfUrl, qrUrl, coupon, now)
	if err = c.repo.AddInvoice(ctx, req.Username, invoice, counter, expect); err != nil {
		c.cleanup(ctx, log, pdfUrl, qrUrl)
		metrics.InvoiceUploads.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, storeErr("add invoice", err)
	}
	committed = true

	metrics.InvoiceUploads.WithLabelValues(metrics.ResultAccepted).Inc()
	log.With(
		sl.Invoice(invoiceId),
		slog.Int("daily_uploads", counter.DailyUploads),
		slog.Bool("coupon", coupon != nil),
	).Info("invoice uploaded")

	return &entity.UploadResult{
		Url:           pdfUrl,
		InvoiceNumber: invoiceId,
		QrCodeUrl:     qrUrl,
		FeedbackUrl:   feedbackUrl,
	}, nil
}

func (c *Core) checkFile(data []byte) error {
	size := int64(len(data))
	if size == 0 {
		return fmt.Errorf("%w: file is empty", entity.ErrValidation)
	}
	if size > c.maxFileSize {
		return fmt.Errorf("%w: file size %d exceeds the limit of %d bytes", entity.ErrValidation, size, c.maxFileSize)
	}
	if mime := mimetype.Detect(data); !mime.Is(pdfMime) {
		return fmt.Errorf("%w: file type %s is not a pdf", entity.ErrValidation, mime.String())
	}
	return nil
}

// invoiceId picks the client supplied number, a sample id, or the next
// sequential INV-<date>-<n> not yet used by the owner
func (c *Core) invoiceId(owner *entity.Owner, requested string, sample bool, now time.Time) (string, error) {
	if requested != "" {
		if owner.Invoice(requested) != nil {
			return "", fmt.Errorf("%w: invoice %s already exists", entity.ErrConflict, requested)
		}
		return requested, nil
	}
	if sample {
		return "SAMPLE-" + uuid.NewString()[:8], nil
	}
	prefix := "INV-" + now.Format("20060102")
	for n := owner.UploadCounter.Count + 1; ; n++ {
		id := fmt.Sprintf("%s-%04d", prefix, n)
		if owner.Invoice(id) == nil {
			return id, nil
		}
	}
}

func (c *Core) storeQr(ctx context.Context, username, invoiceId, feedbackUrl string) (string, error) {
	png, err := qr.Encode(feedbackUrl)
	if err != nil {
		return "", err
	}
	return c.store.Put(ctx, username, invoiceId+"-qr.png", png)
}

func (c *Core) cleanup(ctx context.Context, log *slog.Logger, urls ...string) {
	for _, u := range urls {
		if err := c.store.Delete(ctx, u); err != nil {
			log.With(slog.String("url", u), sl.Err(err)).Warn("remove stored file")
		}
	}
}
