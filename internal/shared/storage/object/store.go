// Package object archives raw letter sources uploaded as files.
package object

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for saving and retrieving uploaded sources.
type ObjectStore interface {
	Save(ctx context.Context, userID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// DetectMIME sniffs content, preferring the LaTeX type for .tex/.cls/.sty names.
func DetectMIME(fileName string, sniff []byte) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".tex", ".cls", ".sty":
		return "application/x-tex"
	}
	return http.DetectContentType(sniff)
}
