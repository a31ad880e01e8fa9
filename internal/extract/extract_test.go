package extract

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildPDF assembles a single-page PDF that shows text in Helvetica.
func buildPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDF(t *testing.T) {
	got, err := PDF(buildPDF("Hello PDF"))
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !strings.Contains(got, "Hello PDF") {
		t.Errorf("text = %q, want it to contain %q", got, "Hello PDF")
	}
}

func TestPDF_Invalid(t *testing.T) {
	if _, err := PDF([]byte("not a pdf")); err == nil {
		t.Error("expected error for invalid pdf")
	}
}

func TestDecode(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("  plain body \n"))
	got, err := Decode(TypeText, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "plain body" {
		t.Errorf("text = %q", got)
	}

	pdfEnc := base64.StdEncoding.EncodeToString(buildPDF("From base64"))
	got, err = Decode(TypePDF, pdfEnc)
	if err != nil {
		t.Fatalf("Decode pdf: %v", err)
	}
	if !strings.Contains(got, "From base64") {
		t.Errorf("pdf text = %q", got)
	}
}

func TestText_Errors(t *testing.T) {
	if _, err := Text("docx", []byte("x")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := Text(TypeText, []byte("   ")); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
	if _, err := Text(TypeText, []byte{0xff, 0xfe}); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
	if _, err := Decode(TypeText, "!!!"); err == nil {
		t.Error("expected base64 error")
	}
}
