package imageenc

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"promptsmith/internal/domain"
)

// SupportedTypes lists the declared media types accepted for encoding.
var SupportedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// EncodedImage is an image in the transport encoding expected by the model API.
type EncodedImage struct {
	MIMEType string
	Data     string
}

// DataURL renders the image as a data URL.
func (e EncodedImage) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + e.Data
}

// IsZero reports whether the image carries no payload.
func (e EncodedImage) IsZero() bool {
	return e.Data == ""
}

// Bytes decodes the payload back to raw image bytes.
func (e EncodedImage) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, domain.NewError(domain.KindEncoding, "The image payload is not valid base64.", err)
	}
	return raw, nil
}

// Supported reports whether mimeType is one of SupportedTypes.
func Supported(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, t := range SupportedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Encode reads r fully and returns its base64 representation together with the
// declared media type. The media type is passed through as declared; it is
// never re-derived from the content.
func Encode(r io.Reader, mimeType string) (EncodedImage, error) {
	if r == nil {
		return EncodedImage{}, domain.NewError(domain.KindEncoding, "No image data to encode.", nil)
	}
	if !Supported(mimeType) {
		return EncodedImage{}, domain.NewError(domain.KindEncoding,
			fmt.Sprintf("Unsupported image type %q. Use PNG, JPEG, GIF or WEBP.", mimeType), nil)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return EncodedImage{}, domain.NewError(domain.KindEncoding, "The image could not be read.", err)
	}
	return EncodeBytes(raw, mimeType)
}

// EncodeBytes is Encode for an in-memory payload.
func EncodeBytes(raw []byte, mimeType string) (EncodedImage, error) {
	if !Supported(mimeType) {
		return EncodedImage{}, domain.NewError(domain.KindEncoding,
			fmt.Sprintf("Unsupported image type %q. Use PNG, JPEG, GIF or WEBP.", mimeType), nil)
	}
	if len(raw) == 0 {
		return EncodedImage{}, domain.NewError(domain.KindEncoding, "The image is empty.", nil)
	}
	return EncodedImage{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}
