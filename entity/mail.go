package entity

// InvoiceMail carries the template inputs of the invoice email
type InvoiceMail struct {
	CustomerEmail string
	InvoiceNumber string
	PdfUrl        string
	CompanyName   string
	FeedbackUrl   string
}

type VerificationMail struct {
	Email            string
	Username         string
	OrganizationName string
	Code             string
}
