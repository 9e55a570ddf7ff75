package input

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/keyword"
)

func keywords(records []keyword.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Keyword()
	}
	return out
}

func TestParse_CSVSingleRow(t *testing.T) {
	records, err := New(nil).Parse([]byte("cats,looking for cat toys\n"), FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Keyword() != "cats" || records[0].SearchIntent() != "looking for cat toys" {
		t.Errorf("got %q / %q", records[0].Keyword(), records[0].SearchIntent())
	}
}

func TestParse_CSVSkipsRows(t *testing.T) {
	data := "keyword,search_intent\n" +
		"cats,toys\n" +
		"lonely\n" +
		" ,blank keyword\n" +
		"dogs,  \n" +
		"\"quoted, kw\",intent,extra,cols\n" +
		"birds, seed \n"
	records, err := New(nil).Parse([]byte(data), FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := keywords(records)
	want := []string{"cats", "quoted, kw", "birds"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, got[i], want[i])
		}
	}
	if records[2].SearchIntent() != "seed" {
		t.Errorf("SearchIntent() = %q, want trimmed", records[2].SearchIntent())
	}
}

func TestParse_CSVBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Keyword,Intent\ncats,toys\n")...)
	records, err := New(nil).Parse(data, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Keyword() != "cats" {
		t.Errorf("got %v", keywords(records))
	}
}

func TestParse_CSVMalformedQuote(t *testing.T) {
	_, err := New(nil).Parse([]byte("\"cats,toys\nfoo,bar\n"), FormatCSV)
	if !errors.Is(err, domain.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestParse_TextBlankLine(t *testing.T) {
	records, err := New(nil).Parse([]byte("dogs\r\n\r\n  birds  \n"), FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := keywords(records)
	if len(got) != 2 || got[0] != "dogs" || got[1] != "birds" {
		t.Fatalf("got %v, want [dogs birds]", got)
	}
	for _, r := range records {
		if r.HasSearchIntent() {
			t.Errorf("%q: unexpected search intent %q", r.Keyword(), r.SearchIntent())
		}
	}
}

func TestParse_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		if _, err := New(nil).Parse(data, FormatText); !errors.Is(err, domain.ErrInputMissing) {
			t.Errorf("expected ErrInputMissing, got %v", err)
		}
	}
}

func TestParse_NoUsableRows(t *testing.T) {
	records, err := New(nil).Parse([]byte("\n   \n\t\n"), FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	_, err := New(nil).Parse([]byte{'c', 0xff, 0xfe, '\n'}, FormatText)
	if !errors.Is(err, domain.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"keywords.csv": FormatCSV,
		"KEYWORDS.CSV": FormatCSV,
		"keywords.txt": FormatText,
		"keywords":     FormatText,
	}
	for name, want := range tests {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "CSV": FormatCSV, "txt": FormatText, "text": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
