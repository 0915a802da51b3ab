package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	got, err := NormalizeName("  Food ")
	if err != nil || got != "Food" {
		t.Fatalf("expected Food, got %q (err=%v)", got, err)
	}
	for _, bad := range []string{"", "   ", "\t\n", strings.Repeat("x", MaxNameLen+1)} {
		if _, err := NormalizeName(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q expected invalid input, got %v", bad, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	now := time.Now()
	good := Expense{CategoryID: 1, UserID: "a@b.c", Amount: Money{Cents: 100}, Date: now}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{CategoryID: 1, UserID: "", Amount: Money{Cents: 1}, Date: now},
		{CategoryID: 0, UserID: "u", Amount: Money{Cents: 1}, Date: now},
		{CategoryID: 1, UserID: "u", Amount: Money{Cents: 0}, Date: now},
		{CategoryID: 1, UserID: "u", Amount: Money{Cents: 1}},
		{CategoryID: 1, UserID: "u", Amount: Money{Cents: 1}, Date: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{CategoryID: 1, UserID: "u", Amount: Money{Cents: 1}, Date: time.Date(0, 12, 31, 0, 0, 0, 0, time.UTC)},
		{CategoryID: 1, UserID: "u", Amount: Money{Cents: 1}, Date: now, Description: strings.Repeat("d", MaxDescriptionLen+1)},
	}
	for i, e := range bads {
		if err := e.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d expected invalid input, got %v", i, err)
		}
	}
}

func TestBillValidate(t *testing.T) {
	deadline := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	good := Bill{UserID: "u", Name: "Rent", Amount: Money{Cents: 120000}, Deadline: deadline}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Bill{UserID: "u", Name: " ", Amount: Money{Cents: 1}, Deadline: deadline}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Bill{UserID: "u", Name: "Rent", Deadline: deadline}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	far := Bill{UserID: "u", Name: "Rent", Amount: Money{Cents: 1}, Deadline: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := far.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for year 10000, got %v", err)
	}
	if !good.DueBefore(deadline.Add(time.Hour)) || good.DueBefore(deadline) {
		t.Fatalf("unexpected DueBefore result")
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (Budget{UserID: "u", CategoryID: 3, Amount: Money{Cents: 5000}}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Budget{UserID: "u", Amount: Money{Cents: 5000}}).Validate(); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:30:00Z", time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-05-01T12:30:00+02:00", time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-05-01T10:30:00.250Z", time.Date(2024, 5, 1, 10, 30, 0, 250_000_000, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil || !got.Equal(tc.want) {
			t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
		}
	}
	if _, err := ParseDate("01/05/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTimestampRoundTripKeepsOrder(t *testing.T) {
	early := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("CET", 3600))
	late := early.Add(9 * time.Hour)
	a, b := FormatTimestamp(early), FormatTimestamp(late)
	if a >= b {
		t.Fatalf("expected %q < %q", a, b)
	}
	back, err := ParseTimestamp(a)
	if err != nil || !back.Equal(early) {
		t.Fatalf("round trip mismatch: %v (err=%v)", back, err)
	}
}

func TestPieSeriesKeepsOrder(t *testing.T) {
	summaries := []CategorySummary{
		{Category: Category{Name: "Food"}, TotalExpense: Money{Cents: 7000}},
		{Category: Category{Name: "Transport"}},
	}
	got := PieSeries(summaries)
	if len(got) != 2 || got[0].Label != "Food" || got[0].Value.Cents != 7000 || got[1].Value.Cents != 0 {
		t.Fatalf("unexpected series: %+v", got)
	}
	if PieSeries(nil) == nil {
		t.Fatalf("expected empty non-nil series")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(ErrDuplicateName); got != "Category name already exists" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
