package time

import (
	"testing"
	"time"
)

func TestPtr(t *testing.T) {
	t.Parallel()

	if Ptr(time.Time{}) != nil {
		t.Fatal("Ptr of zero time should be nil")
	}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if p := Ptr(at); p == nil || !p.Equal(at) {
		t.Fatalf("Ptr lost its value: %v", p)
	}
}

func TestNowUTC(t *testing.T) {
	t.Parallel()

	now := NowUTC()
	if now.Location() != time.UTC {
		t.Fatalf("NowUTC not in UTC: %v", now.Location())
	}
	if now.Nanosecond()%1000 != 0 {
		t.Fatalf("NowUTC not truncated to microseconds: %d", now.Nanosecond())
	}
}

func TestDeref(t *testing.T) {
	t.Parallel()

	if !Deref(nil).IsZero() {
		t.Fatal("Deref(nil) should be zero")
	}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !Deref(&at).Equal(at) {
		t.Fatal("Deref dropped the value")
	}
}
