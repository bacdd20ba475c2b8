// Package qr renders the feedback-link QR code attached to every invoice.
package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const size = 256

// Encode returns a PNG image of the QR code for content
func Encode(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr: empty content")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}
	return png, nil
}
