package gateway

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of rendered payment codes.
const QRSize = 256

var ErrNoCodeURL = errors.New("payment has no code url")

// RenderQR encodes a native-pay code URL as a PNG image.
func RenderQR(codeURL string) ([]byte, error) {
	if codeURL == "" {
		return nil, ErrNoCodeURL
	}
	png, err := qrcode.Encode(codeURL, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
