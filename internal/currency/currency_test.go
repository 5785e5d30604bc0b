package currency

import "testing"

func TestParseUnit(t *testing.T) {
	cases := []struct {
		in   string
		want Unit
	}{
		{"USD", "usd"},
		{" eur ", "eur"},
		{"sat", Sat},
	}
	for _, tc := range cases {
		if got := ParseUnit(tc.in); got != tc.want {
			t.Fatalf("ParseUnit(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAmountFormat(t *testing.T) {
	cases := []struct {
		value    int64
		decimals int
		want     string
	}{
		{1050, 2, "10.50"},
		{5, 2, "0.05"},
		{0, 2, "0.00"},
		{777, 0, "777"},
		{123456, 3, "123.456"},
	}
	for _, tc := range cases {
		a := NewAmount("usd", tc.value)
		if got := a.Format(tc.decimals); got != tc.want {
			t.Fatalf("Format(%d, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestAmountString(t *testing.T) {
	if got := NewAmount(Sat, 21).String(); got != "21 sat" {
		t.Fatalf("String() = %q", got)
	}
}
