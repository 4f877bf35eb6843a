package util

import (
	"errors"
	"strings"
	"unicode"
)

const maxFileNameLen = 120

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal patterns. Long names keep their extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if len(s) > maxFileNameLen {
		ext := ""
		if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 8 {
			ext = s[i:]
		}
		s = s[:maxFileNameLen-len(ext)] + ext
	}
	return s, nil
}

// AttachmentName builds a download file name from a display title.
func AttachmentName(title, fallback, ext string) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = fallback
	}
	base = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == ' ' {
			return r
		}
		return -1
	}, base)
	base = strings.Join(strings.Fields(base), "_")
	if base == "" {
		base = "letter"
	}
	return base + ext
}
