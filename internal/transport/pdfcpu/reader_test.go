package pdfcpu

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"
)

func makePDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		for _, line := range lines {
			pdf.Cell(0, 10, line)
			pdf.Ln(10)
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func TestReader_Pages(t *testing.T) {
	data := makePDF(t,
		[]string{"Cam chat guide", "Second line"},
		[]string{"Page two text"},
	)

	r := NewReader(zap.NewNop())
	pages, err := r.Pages(context.Background(), "guide.pdf", data)
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("page numbers = %d, %d", pages[0].Number, pages[1].Number)
	}
	if !strings.Contains(pages[0].Text, "Cam chat guide") || !strings.Contains(pages[0].Text, "Second line") {
		t.Errorf("page 1 text = %q", pages[0].Text)
	}
	if !strings.Contains(pages[1].Text, "Page two text") {
		t.Errorf("page 2 text = %q", pages[1].Text)
	}
}

func TestReader_UnicodeFont(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.AddUTF8FontFromBytes("goregular", "", goregular.TTF)
	pdf.SetFont("goregular", "", 12)
	pdf.AddPage()
	pdf.Cell(0, 10, "Cat toys guide")
	pdf.Ln(10)
	pdf.Cell(0, 10, "Spielzeug für Katzen")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}

	text, err := NewReader(zap.NewNop()).Text(context.Background(), "utf8.pdf", buf.Bytes())
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if strings.ContainsRune(text, 0) {
		t.Fatalf("text contains NUL bytes: %q", text)
	}
	if !strings.Contains(text, "Cat toys guide") || !strings.Contains(text, "Spielzeug für Katzen") {
		t.Errorf("text = %q", text)
	}
}

func TestReader_TextOrder(t *testing.T) {
	data := makePDF(t, []string{"alpha"}, []string{"beta"})

	text, err := NewReader(nil).Text(context.Background(), "a.pdf", data)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	a, b := strings.Index(text, "alpha"), strings.Index(text, "beta")
	if a < 0 || b < 0 || a > b {
		t.Errorf("text = %q, want alpha before beta", text)
	}
}

func TestReader_Corrupt(t *testing.T) {
	r := NewReader(zap.NewNop())
	if _, err := r.Pages(context.Background(), "bad.pdf", []byte("%PDF-1.4 not really")); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
	if _, err := r.Pages(context.Background(), "empty.pdf", nil); err == nil {
		t.Fatal("expected error for empty pdf")
	}
}

func TestReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewReader(nil).Pages(ctx, "a.pdf", []byte("%PDF")); err == nil {
		t.Fatal("expected context error")
	}
}
