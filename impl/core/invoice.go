package core

import (
	"context"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/metrics"
	"invisifeed/lib/sl"
	"log/slog"
)

func (c *Core) SendInvoiceEmail(ctx context.Context, username string, req *entity.InvoiceEmailRequest) (*entity.Message, error) {
	if c.mail == nil {
		return nil, fmt.Errorf("mailer not connected")
	}
	owner, err := c.loadOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	invoice := owner.Invoice(req.InvoiceNumber)
	if invoice == nil {
		return nil, fmt.Errorf("invoice %s: %w", req.InvoiceNumber, entity.ErrNotFound)
	}

	err = c.mail.SendInvoice(ctx, &entity.InvoiceMail{
		CustomerEmail: req.CustomerEmail,
		InvoiceNumber: invoice.InvoiceId,
		PdfUrl:        req.PdfUrl,
		CompanyName:   req.CompanyName,
		FeedbackUrl:   c.feedbackUrl(username, invoice.InvoiceId),
	})
	log := c.log.With(sl.Owner(username), sl.Invoice(invoice.InvoiceId))
	if err != nil {
		metrics.Emails.WithLabelValues("invoice", metrics.ResultFailed).Inc()
		log.Error("send invoice email", sl.Err(err))
		return nil, entity.Transient("send invoice email", err)
	}
	metrics.Emails.WithLabelValues("invoice", metrics.ResultSent).Inc()
	log.Info("invoice email sent")
	return &entity.Message{Message: "Email sent successfully"}, nil
}

// RedeemCoupon marks the invoice coupon as used; it can happen only once
func (c *Core) RedeemCoupon(ctx context.Context, username string, req *entity.RedeemCouponRequest) (*entity.Coupon, error) {
	owner, err := c.loadOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	invoice := owner.Invoice(req.InvoiceId)
	if invoice == nil {
		return nil, fmt.Errorf("invoice %s: %w", req.InvoiceId, entity.ErrNotFound)
	}
	coupon := invoice.CouponAttached
	if coupon == nil {
		return nil, fmt.Errorf("coupon on invoice %s: %w", req.InvoiceId, entity.ErrNotFound)
	}
	if err = coupon.CanRedeem(req.CouponCode, c.now()); err != nil {
		return nil, err
	}
	if err = c.repo.RedeemCoupon(ctx, username, invoice.InvoiceId); err != nil {
		return nil, storeErr("redeem coupon", err)
	}
	redeemed := *coupon
	redeemed.IsCouponUsed = true
	c.log.With(sl.Owner(username), slog.String("coupon", coupon.CouponCode)).Info("coupon redeemed")
	return &redeemed, nil
}
