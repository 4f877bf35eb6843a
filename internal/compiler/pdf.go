package compiler

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFInfo summarizes a compiled document.
type PDFInfo struct {
	HasMagic bool
	Pages    int
}

// Inspect reports whether data looks like a PDF and how many pages it has.
// The page count is zero when the document cannot be parsed.
func Inspect(data []byte) (info PDFInfo, err error) {
	info.HasMagic = bytes.HasPrefix(data, []byte("%PDF"))
	if !info.HasMagic {
		return info, fmt.Errorf("missing %%PDF header")
	}
	defer func() {
		if r := recover(); r != nil {
			info.Pages = 0
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return info, fmt.Errorf("parse pdf: %w", err)
	}
	info.Pages = reader.NumPage()
	return info, nil
}
