package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"10000", 10000, true},
		{"10,000", 10000, true},
		{" 20 000 ", 20000, true},
		{"", 0, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
		{",", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected ErrValidation, got %v", tc.in, err)
		}
	}
}

func TestParseAmountNegative(t *testing.T) {
	_, err := ParseAmount("-10")
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		10000:   "10,000",
		1234567: "1,234,567",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}
