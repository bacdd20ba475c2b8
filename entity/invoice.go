package entity

import (
	"invisifeed/lib/validate"
	"net/http"
	"time"
)

type Invoice struct {
	InvoiceId           string    `json:"invoice_id" bson:"invoice_id"`
	InvoicePdfUrl       string    `json:"invoice_pdf_url" bson:"invoice_pdf_url"`
	MergedPdfUrl        string    `json:"merged_pdf_url,omitempty" bson:"merged_pdf_url,omitempty"`
	QrCodeUrl           string    `json:"qr_code_url,omitempty" bson:"qr_code_url,omitempty"`
	AIUseCount          int       `json:"ai_use_count" bson:"ai_use_count"`
	CreatedAt           time.Time `json:"created_at" bson:"created_at"`
	IsFeedbackSubmitted bool      `json:"is_feedback_submitted" bson:"is_feedback_submitted"`
	CouponAttached      *Coupon   `json:"coupon_attached,omitempty" bson:"coupon_attached"`
}

func NewInvoice(id, pdfUrl, qrUrl string, coupon *Coupon, now time.Time) *Invoice {
	return &Invoice{
		InvoiceId:      id,
		InvoicePdfUrl:  pdfUrl,
		QrCodeUrl:      qrUrl,
		CreatedAt:      now,
		CouponAttached: coupon,
	}
}

// UploadRequest is assembled by the upload handler from the multipart form
type UploadRequest struct {
	Username      string
	FileName      string
	Data          []byte
	Coupon        *CouponData
	IsSample      bool
	InvoiceNumber string
}

type UploadResult struct {
	Url           string `json:"url"`
	InvoiceNumber string `json:"invoice_number"`
	QrCodeUrl     string `json:"qr_code_url"`
	FeedbackUrl   string `json:"feedback_url"`
}

type InvoiceEmailRequest struct {
	Username      string `json:"username"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	PdfUrl        string `json:"pdf_url" validate:"required,url"`
	CompanyName   string `json:"company_name" validate:"omitempty,max=120"`
}

func (r *InvoiceEmailRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
