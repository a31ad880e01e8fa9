// Package extract turns uploaded document bodies into plain text.
package extract

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Supported body types.
const (
	TypeText = "text"
	TypePDF  = "pdf"
)

var (
	// ErrUnsupported is returned for an unknown body type.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrEmpty is returned when a body yields no text.
	ErrEmpty = errors.New("document has no text")
)

// maxPDFText bounds the text read out of a single PDF.
const maxPDFText = 8 << 20

// Decode base64-decodes encoded and extracts its text according to kind.
func Decode(kind, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("decoding %s body: %w", kind, err)
	}
	return Text(kind, data)
}

// Text extracts plain text from data.
func Text(kind string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch kind {
	case TypeText, "":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("text body is not valid UTF-8")
		}
		text = string(data)
	case TypePDF:
		text, err = PDF(data)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, kind)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// PDF returns the text content of every page of a PDF, in page order.
func PDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, io.LimitReader(plain, maxPDFText)); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return b.String(), nil
}
