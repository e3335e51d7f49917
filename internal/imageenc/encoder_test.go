package imageenc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"promptsmith/internal/domain"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestEncodeSupportedTypes(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	for _, mimeType := range SupportedTypes {
		t.Run(mimeType, func(t *testing.T) {
			enc, err := Encode(bytes.NewReader(payload), mimeType)
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if enc.MIMEType != mimeType {
				t.Fatalf("MIMEType = %q, want %q", enc.MIMEType, mimeType)
			}
			decoded, err := base64.StdEncoding.DecodeString(enc.Data)
			if err != nil {
				t.Fatalf("payload is not base64: %v", err)
			}
			if !bytes.Equal(decoded, payload) {
				t.Fatalf("decoded payload mismatch: %v", decoded)
			}
		})
	}
}

func TestEncodeKeepsDeclaredType(t *testing.T) {
	// JPEG magic bytes declared as PNG stay PNG.
	enc, err := EncodeBytes([]byte{0xff, 0xd8, 0xff, 0xe0}, "image/png")
	if err != nil {
		t.Fatalf("EncodeBytes returned error: %v", err)
	}
	if enc.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", enc.MIMEType)
	}
	if !strings.HasPrefix(enc.DataURL(), "data:image/png;base64,") {
		t.Fatalf("unexpected data url %q", enc.DataURL())
	}
}

func TestEncodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		encode func() (EncodedImage, error)
	}{
		{"unreadable", func() (EncodedImage, error) { return Encode(failingReader{}, "image/png") }},
		{"nil reader", func() (EncodedImage, error) { return Encode(nil, "image/png") }},
		{"unsupported type", func() (EncodedImage, error) { return Encode(strings.NewReader("x"), "image/tiff") }},
		{"empty payload", func() (EncodedImage, error) { return EncodeBytes(nil, "image/jpeg") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := tc.encode()
			if !errors.Is(err, domain.ErrEncoding) {
				t.Fatalf("expected encoding error, got %v", err)
			}
			if !enc.IsZero() {
				t.Fatalf("expected zero image, got %+v", enc)
			}
		})
	}
}

func TestBytesRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	enc, err := EncodeBytes(raw, "image/png")
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	got, err := enc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("Bytes = %v, want %v", got, raw)
	}
	if _, err := (EncodedImage{MIMEType: "image/png", Data: "%%%"}).Bytes(); !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected encoding error for bad base64, got %v", err)
	}
}
