package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okalidis/consultiq/internal/domain"
)

func TestNormalizeTime_Canonicalizes(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"3:00 PM", "3:00 PM"},
		{"3 PM", "3:00 PM"},
		{"3pm", "3:00 PM"},
		{"3 p.m.", "3:00 PM"},
		{"03:00 pm", "3:00 PM"},
		{"10:30 AM", "10:30 AM"},
		{"  9:15 am  ", "9:15 AM"},
		{"3:00 PM - 4:00 PM", "3:00 PM"},
		{"3:00PM-4:00PM", "3:00 PM"},
		{"10:00 AM - 11:00 AM", "10:00 AM"},
		{"12:00 PM", "12:00 PM"},
	}

	for _, tc := range cases {
		got, err := domain.NormalizeTime(tc.input)
		if err != nil {
			t.Errorf("NormalizeTime(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeTime(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestNormalizeTime_RejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "afternoon", "25:00 PM", "13 PM", "3:75 PM", "3:00", "0:30 AM"} {
		_, err := domain.NormalizeTime(input)
		var timeErr *domain.InvalidTimeError
		if !errors.As(err, &timeErr) {
			t.Errorf("NormalizeTime(%q): expected InvalidTimeError, got %v", input, err)
		}
	}
}

func TestNormalizeTime_EquatesDuplicateRepresentations(t *testing.T) {
	// The same slot arriving from the enumerated list and from free text
	// must canonicalize identically, or conflict detection misses it.
	a, err := domain.NormalizeTime("3 PM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := domain.NormalizeTime("3:00 PM - 4:00 PM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("representations diverge: %q vs %q", a, b)
	}
}

func TestParseWeekday(t *testing.T) {
	day, err := domain.ParseWeekday("monday")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day != domain.Monday {
		t.Errorf("got %q, want %q", day, domain.Monday)
	}

	_, err = domain.ParseWeekday("Someday")
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2025, 3, 10, 17, 45, 3, 0, time.UTC)
	got := domain.DateOnly(in)
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %v, want %v", got, want)
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2025-03-10 is a Monday.
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if day := domain.WeekdayOf(date); day != domain.Monday {
		t.Errorf("WeekdayOf = %q, want %q", day, domain.Monday)
	}
}
