package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"coverletter-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	body := `\documentclass{letter}\begin{document}Hi\end{document}`

	key, size, mime, err := store.Save(ctx, "guest:abc", "cover.tex", strings.NewReader(body))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != int64(len(body)) {
		t.Fatalf("expected size %d, got %d", len(body), size)
	}
	if mime != "application/x-tex" {
		t.Fatalf("unexpected mime %q", mime)
	}
	if !strings.HasSuffix(key, "_cover.tex") {
		t.Fatalf("unexpected key %q", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != body {
		t.Fatalf("content mismatch: %q", got)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../etc/passwd"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, _, _, err := store.Save(context.Background(), "u", "../x.tex", strings.NewReader("x")); err == nil {
		t.Fatalf("expected sanitize error")
	}
}
