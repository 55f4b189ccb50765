package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.5", true},
		{"-1", "-1", true},
		{"-12,34", "-12.34", true},
		{"+7", "7", true},
		{"0", "0", true},
		{"0.000001", "0.000001", true},
		{"0.0000001", "", false}, // beyond max scale, would round
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{".", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q unexpected error: %v", tc.in, err)
			}
			want, _ := decimal.NewFromString(tc.out)
			if !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s", tc.in, want, got)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %s", tc.in, got)
			}
		}
	}
}

func TestFractionRoundTrip(t *testing.T) {
	cases := []struct {
		in    string
		num   int64
		denom int64
	}{
		{"12.34", 1234, 100},
		{"12", 1200, 100},
		{"-0.5", -50, 100},
		{"0", 0, 100},
		{"1.005", 1005, 1000},
		{"0.000001", 1, 1000000},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tc.in, err)
		}
		num, denom, err := FractionOf(d)
		if err != nil {
			t.Fatalf("%q FractionOf error: %v", tc.in, err)
		}
		if num != tc.num || denom != tc.denom {
			t.Fatalf("%q expected %d/%d, got %d/%d", tc.in, tc.num, tc.denom, num, denom)
		}
		back, err := AmountFromFraction(num, denom)
		if err != nil {
			t.Fatalf("%q AmountFromFraction error: %v", tc.in, err)
		}
		if !back.Equal(d) {
			t.Fatalf("%q round trip lost exactness: got %s", tc.in, back)
		}
	}
}

func TestAmountFromFraction(t *testing.T) {
	t.Run("zero denominator reads as one", func(t *testing.T) {
		got, err := AmountFromFraction(7, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("expected 7, got %s", got)
		}
	})

	t.Run("non power of ten denominator rejected", func(t *testing.T) {
		if _, err := AmountFromFraction(1, 3); err == nil {
			t.Fatal("expected error for denominator 3")
		}
	})

	t.Run("negative denominator rejected", func(t *testing.T) {
		if _, err := AmountFromFraction(1, -100); err == nil {
			t.Fatal("expected error for negative denominator")
		}
	})
}

func TestAdditionStaysExact(t *testing.T) {
	// 0.1 + 0.2 is the classic float trap; exact decimals must land on
	// 0.3 with no residue.
	a, _ := ParseAmount("0.1")
	b, _ := ParseAmount("0.2")
	want, _ := ParseAmount("0.3")
	if sum := a.Add(b); !sum.Equal(want) {
		t.Fatalf("0.1 + 0.2 = %s, want 0.3", sum)
	}

	// Summing mixed scales must not lose precision either.
	sum := decimal.Zero
	cent, _ := ParseAmount("0.01")
	for i := 0; i < 100; i++ {
		sum = sum.Add(cent)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("100 * 0.01 = %s, want 1", sum)
	}
}

func TestFormatAmount(t *testing.T) {
	d, _ := decimal.NewFromString("1234.5")
	if got := FormatAmount(d); got != "1234.50" {
		t.Fatalf("expected 1234.50, got %s", got)
	}
	if got := FormatAmount(decimal.Zero); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}
