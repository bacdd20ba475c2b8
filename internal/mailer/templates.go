package mailer

import (
	"bytes"
	"html/template"
	"invisifeed/entity"
)

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
<h2>Invoice {{.InvoiceNumber}} from {{.CompanyName}}</h2>
<p>Thank you for choosing {{.CompanyName}}. Your invoice is ready.</p>
<p><a href="{{.PdfUrl}}">Download invoice {{.InvoiceNumber}}</a></p>
{{if .FeedbackUrl}}<p>We would love to hear about your experience: <a href="{{.FeedbackUrl}}">leave feedback</a>.</p>{{end}}
</body>
</html>`))

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
<h2>Hello {{.Username}},</h2>
<p>Thank you for registering {{.OrganizationName}}. Use the following code to verify your account:</p>
<p style="font-size: 24px; letter-spacing: 4px;"><b>{{.Code}}</b></p>
<p>The code expires soon. If you did not request this, please ignore this email.</p>
</body>
</html>`))

func renderInvoice(data *entity.InvoiceMail) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderVerification(data *entity.VerificationMail) (string, error) {
	var buf bytes.Buffer
	if err := verificationTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
