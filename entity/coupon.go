package entity

import (
	"fmt"
	"invisifeed/lib/validate"
	"net/http"
	"strings"
	"time"
)

const DefaultCouponExpiryDays = 30

type Coupon struct {
	CouponCode        string    `json:"coupon_code" bson:"coupon_code"`
	CouponDescription string    `json:"coupon_description" bson:"coupon_description"`
	CouponExpiryDate  time.Time `json:"coupon_expiry_date" bson:"coupon_expiry_date"`
	IsCouponUsed      bool      `json:"is_coupon_used" bson:"is_coupon_used"`
	CouponCreatedAt   time.Time `json:"coupon_created_at" bson:"coupon_created_at"`
}

// CouponData is the owner-supplied form sent along with an invoice upload
type CouponData struct {
	CouponCode  string `json:"coupon_code" validate:"required,alphanum,uppercase,max=32"`
	Description string `json:"description" validate:"required,max=200"`
	ExpiryDays  int    `json:"expiry_days" validate:"min=0,max=3650"`
}

// NewCoupon normalizes the form data and builds a coupon created at now
func NewCoupon(data *CouponData, now time.Time) (*Coupon, error) {
	if data == nil {
		return nil, nil
	}
	data.CouponCode = strings.ToUpper(strings.TrimSpace(data.CouponCode))
	data.Description = strings.TrimSpace(data.Description)
	if data.ExpiryDays == 0 {
		data.ExpiryDays = DefaultCouponExpiryDays
	}
	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("coupon: %w", err)
	}
	return &Coupon{
		CouponCode:        data.CouponCode,
		CouponDescription: data.Description,
		CouponExpiryDate:  now.Add(time.Duration(data.ExpiryDays) * 24 * time.Hour),
		CouponCreatedAt:   now,
	}, nil
}

func (c *Coupon) IsExpired(now time.Time) bool {
	return !now.Before(c.CouponExpiryDate)
}

// CanRedeem checks the used-flag transition; the coupon itself is never changed here
func (c *Coupon) CanRedeem(code string, now time.Time) error {
	if !strings.EqualFold(strings.TrimSpace(code), c.CouponCode) {
		return fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	if c.IsCouponUsed {
		return fmt.Errorf("%w: coupon already used", ErrConflict)
	}
	if c.IsExpired(now) {
		return fmt.Errorf("%w: coupon expired on %s", ErrExpired, c.CouponExpiryDate.Format(time.DateOnly))
	}
	return nil
}

type RedeemCouponRequest struct {
	Username   string `json:"username"`
	InvoiceId  string `json:"invoice_id" validate:"required"`
	CouponCode string `json:"coupon_code" validate:"required"`
}

func (r *RedeemCouponRequest) Bind(_ *http.Request) error {
	r.InvoiceId = strings.TrimSpace(r.InvoiceId)
	r.CouponCode = strings.TrimSpace(r.CouponCode)
	return validate.Struct(r)
}
