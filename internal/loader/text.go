package loader

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/nixai/internal/model"
)

var errNotUTF8 = errors.New("content is not valid utf-8")

func loadText(_ context.Context, _ string, data []byte) ([]model.Segment, error) {
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return nil, errNotUTF8
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []model.Segment{{Text: text}}, nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func init() {
	Register(".txt", LoaderFunc(loadText))
}
