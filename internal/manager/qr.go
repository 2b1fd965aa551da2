// ABOUTME: QR challenge rendering for the HTTP facade
// ABOUTME: Encodes the scannable challenge as a PNG data URL

package manager

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// renderQRDataURL encodes a pairing challenge as a data-URL PNG suitable for
// direct embedding in an <img> tag.
func renderQRDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encoding QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// formatPairingCode groups the 8-character code as XXXX-XXXX for display.
// Codes of other lengths pass through unchanged.
func formatPairingCode(code string) string {
	if len(code) == 8 {
		return code[:4] + "-" + code[4:]
	}
	return code
}
