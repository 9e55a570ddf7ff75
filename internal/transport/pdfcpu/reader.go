package pdfcpu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Page is the extracted text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// Reader extracts page text from PDF documents over the pdfcpu object model.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a Reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Pages returns the text of every page of the document, in page order.
// Pages without text operators yield empty Text.
func (r *Reader) Pages(ctx context.Context, name string, data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadAndValidate(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf context: %w", err)
	}

	pages := make([]Page, 0, pdfCtx.PageCount)
	mapped := 0
	for n := 1; n <= pdfCtx.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, _, inh, err := pdfCtx.PageDict(n, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		content, err := pdfCtx.PageContent(d, n)
		if err != nil && !errors.Is(err, model.ErrNoContent) {
			return nil, fmt.Errorf("page %d content: %w", n, err)
		}

		var res types.Dict
		if inh != nil {
			res = inh.Resources
		}
		fonts := pageFonts(pdfCtx.XRefTable, res, r.logger)
		for _, f := range fonts {
			if f.cmap != nil {
				mapped++
			}
		}
		pages = append(pages, Page{Number: n, Text: contentText(bytes.TrimSpace(content), fonts)})
	}

	r.logger.Debug("pdf extracted",
		zap.String("file", name),
		zap.Int("pages", pdfCtx.PageCount),
		zap.Int("unicode_fonts", mapped),
	)
	return pages, nil
}

// Text returns the document's page texts joined by newlines.
func (r *Reader) Text(ctx context.Context, name string, data []byte) (string, error) {
	pages, err := r.Pages(ctx, name, data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// pageFonts resolves the font resources of a page into decoders keyed by resource name.
// Fonts that cannot be resolved are left out and fall back to WinAnsi decoding.
func pageFonts(xt *model.XRefTable, res types.Dict, logger *zap.Logger) map[string]*fontDecoder {
	if res == nil {
		return nil
	}
	obj, ok := res.Find("Font")
	if !ok {
		return nil
	}
	fontDict, err := xt.DereferenceDict(obj)
	if err != nil || fontDict == nil {
		return nil
	}

	fonts := make(map[string]*fontDecoder, len(fontDict))
	for name, ref := range fontDict {
		fd, err := xt.DereferenceDict(ref)
		if err != nil || fd == nil {
			logger.Debug("Skipping unresolved font", zap.String("font", name), zap.Error(err))
			continue
		}
		dec := &fontDecoder{}
		if st := fd.Subtype(); st != nil && *st == "Type0" {
			dec.composite = true
		}
		if o, ok := fd.Find("ToUnicode"); ok {
			cmap, err := readToUnicode(xt, o)
			if err != nil {
				logger.Debug("Ignoring unreadable ToUnicode map", zap.String("font", name), zap.Error(err))
			}
			dec.cmap = cmap
		}
		fonts[name] = dec
	}
	return fonts
}

func readToUnicode(xt *model.XRefTable, o types.Object) (*toUnicode, error) {
	sd, _, err := xt.DereferenceStreamDict(o)
	if err != nil || sd == nil {
		return nil, err
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decode cmap: %w", err)
	}
	return parseToUnicode(sd.Content), nil
}
