package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/nixai/internal/model"
)

var errNotPDF = errors.New("content is not a pdf document")

// loadPDF emits one segment per page that carries text.
func loadPDF(ctx context.Context, _ string, data []byte) (segs []model.Segment, err error) {
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return nil, fmt.Errorf("%w: detected %s", errNotPDF, mt.String())
	}
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			segs, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segs = append(segs, model.Segment{
			Text:     text,
			Metadata: map[string]string{"page": strconv.Itoa(i)},
		})
	}
	return segs, nil
}

func init() {
	Register(".pdf", LoaderFunc(loadPDF))
}
