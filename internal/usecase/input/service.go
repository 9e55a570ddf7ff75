package input

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/keyword"
)

// Format selects how a keyword file is decoded.
type Format string

// Supported keyword file formats.
const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat resolves a format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatText, "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown input format %q", s)
	}
}

// DetectFormat picks csv for *.csv file names and text otherwise.
func DetectFormat(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatText
}

// Parser turns an uploaded keyword file into ordered keyword records.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser. logger may be nil.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse decodes data in input order. Auto format is treated as text; callers holding a file name
// should resolve it with DetectFormat first. A file that decodes but holds no usable rows yields
// an empty slice and nil error.
func (p *Parser) Parse(data []byte, format Format) ([]keyword.Record, error) {
	if len(data) == 0 {
		return nil, domain.ErrInputMissing
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("keyword file is not valid UTF-8: %w", domain.ErrDecode)
	}

	switch format {
	case FormatCSV:
		return p.parseCSV(data)
	case FormatText, FormatAuto, "":
		return p.parseText(data)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func (p *Parser) parseCSV(data []byte) ([]keyword.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var records []keyword.Record
	for row := 1; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w: %w", row, domain.ErrDecode, err)
		}

		if row == 1 && len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "keyword") {
			p.logger.Debug("skipping csv header row")
			continue
		}
		if len(fields) < 2 {
			p.logger.Debug("skipping csv row: fewer than two columns", zap.Int("row", row))
			continue
		}

		rec, err := keyword.New(fields[0], fields[1])
		if err != nil || !rec.HasSearchIntent() {
			p.logger.Debug("skipping csv row: empty keyword or search intent", zap.Int("row", row))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Parser) parseText(data []byte) ([]keyword.Record, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []keyword.Record
	for sc.Scan() {
		rec, err := keyword.New(sc.Text(), "")
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan keyword lines: %w: %w", domain.ErrDecode, err)
	}
	return records, nil
}
