package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestImageKey(t *testing.T) {
	key, err := ImageKey("h1", "image/PNG")
	if err != nil {
		t.Fatalf("image key: %v", err)
	}
	if !strings.HasPrefix(key, "hubs/h1/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := ImageKey("h1", "application/pdf"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestMemoryStorePutImage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	url, err := s.PutImage(ctx, "h1", strings.NewReader("jpegdata"), 8, "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(url, "memory://hubs/h1/") || s.Len() != 1 {
		t.Fatalf("unexpected url %q or len %d", url, s.Len())
	}
	if _, err := s.PutImage(ctx, "h1", strings.NewReader(""), MaxImageBytes+1, "image/jpeg"); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	if err := s.Delete(ctx, url); err != nil || s.Len() != 0 {
		t.Fatalf("delete: %v len=%d", err, s.Len())
	}
}
