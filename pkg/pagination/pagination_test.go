package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(0) = %d", got)
	}
	if got := NormalizeLimit(-3); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(-3) = %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 50); got != MaxLimit {
		t.Fatalf("NormalizeLimit over max = %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("NormalizeLimit(10) = %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor, got nil")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	parsed, err := ParseCursor("   ")
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor, got %+v", parsed)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrimPage(t *testing.T) {
	rows := []int{1, 2, 3, 4}

	page, hasMore := TrimPage(rows, 3)
	if !hasMore {
		t.Fatal("expected next page")
	}
	if len(page) != 3 {
		t.Fatalf("page len = %d", len(page))
	}

	page, hasMore = TrimPage(rows, 10)
	if hasMore {
		t.Fatal("unexpected next page")
	}
	if len(page) != 4 {
		t.Fatalf("page len = %d", len(page))
	}
}
