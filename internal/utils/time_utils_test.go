package utils

import (
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	loc := LoadLocation("")
	if loc == nil {
		t.Fatal("LoadLocation returned nil")
	}

	// Неизвестный пояс дает фиксированный UTC-5
	fallback := LoadLocation("Mars/Olympus")
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, fallback).Zone()
	if offset != -5*60*60 {
		t.Errorf("Expected UTC-5 fallback, got offset %d", offset)
	}
}

func TestDateKey(t *testing.T) {
	loc := time.FixedZone("COT", -5*60*60)

	// 03:00 UTC 12 сентября - это еще 11 сентября в Боготе
	moment := time.Date(2024, 9, 12, 3, 0, 0, 0, time.UTC)
	if got := DateKey(moment, loc); got != "2024-09-11" {
		t.Errorf("Expected 2024-09-11, got %s", got)
	}
}

func TestWeekdayKeys(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name  string
		day   time.Time
		first string
		last  string
	}{
		{"monday", time.Date(2024, 9, 9, 10, 0, 0, 0, loc), "2024-09-09", "2024-09-13"},
		{"wednesday", time.Date(2024, 9, 11, 10, 0, 0, 0, loc), "2024-09-09", "2024-09-13"},
		{"sunday", time.Date(2024, 9, 15, 10, 0, 0, 0, loc), "2024-09-09", "2024-09-13"},
		{"month boundary", time.Date(2024, 10, 2, 10, 0, 0, 0, loc), "2024-09-30", "2024-10-04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := WeekdayKeys(tt.day, loc)
			if len(keys) != 5 {
				t.Fatalf("Expected 5 keys, got %d", len(keys))
			}
			if keys[0] != tt.first || keys[4] != tt.last {
				t.Errorf("Expected %s..%s, got %s..%s", tt.first, tt.last, keys[0], keys[4])
			}
		})
	}
}

func TestTimeOfDay(t *testing.T) {
	loc := time.FixedZone("COT", -5*60*60)
	moment := time.Date(2024, 9, 11, 15, 30, 0, 0, loc)

	got := TimeOfDay(moment, loc, 17, 0)
	want := time.Date(2024, 9, 11, 17, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	loc := time.FixedZone("COT", -5*60*60)
	moment := time.Date(2024, 9, 11, 17, 0, 0, 0, loc)

	parsed, err := ParseTimestamp(FormatTimestamp(moment, loc), loc)
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if !parsed.Equal(moment) {
		t.Errorf("Expected %v, got %v", moment, parsed)
	}

	if _, err := ParseTimestamp("not a time", loc); err == nil {
		t.Error("Expected error for invalid timestamp")
	}
}
