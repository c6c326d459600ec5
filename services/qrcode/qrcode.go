// Package qrsvc renders attendance session payloads as QR code images.
package qrsvc

import (
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/samkazadi/mahudhurio/core/attendance"
)

const defaultSize = 256

type renderer struct{}

var _ attendance.CodeRenderer = (*renderer)(nil)

func NewRenderer() *renderer {
	return &renderer{}
}

// Render encodes payload as a PNG QR code of size x size pixels.
func (renderer) Render(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encoding QR code")
	}
	return png, nil
}
