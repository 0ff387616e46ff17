package ethutil

import (
	"math/big"
	"testing"
)

func TestToSmallestUnit(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"0.1", 6, "100000", false},
		{"0.1", 18, "100000000000000000", false},
		{"25", 6, "25000000", false},
		{"1.000001", 6, "1000001", false},
		{"0.100000", 6, "100000", false},
		{".5", 6, "500000", false},
		{"0", 6, "0", false},
		{"100", 0, "100", false},
		{"0.0000001", 6, "", true},
		{"-1", 6, "", true},
		{"1.2.3", 6, "", true},
		{"abc", 6, "", true},
		{"", 6, "", true},
		{".", 6, "", true},
	}

	for _, tc := range cases {
		got, err := ToSmallestUnit(tc.amount, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ToSmallestUnit(%q, %d): expected err, got %v", tc.amount, tc.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ToSmallestUnit(%q, %d): %v", tc.amount, tc.decimals, err)
		}
		want, _ := new(big.Int).SetString(tc.want, 10)
		if got.Cmp(want) != 0 {
			t.Fatalf("ToSmallestUnit(%q, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		v        string
		decimals int
		want     string
	}{
		{"100000", 6, "0.1"},
		{"25000000", 6, "25"},
		{"1000001", 6, "1.000001"},
		{"0", 6, "0"},
		{"100000000000000000", 18, "0.1"},
		{"42", 0, "42"},
	}

	for _, tc := range cases {
		v, _ := new(big.Int).SetString(tc.v, 10)
		if got := FormatUnits(v, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %q, want %q", tc.v, tc.decimals, got, tc.want)
		}
	}

	if got := FormatUnits(nil, 6); got != "0" {
		t.Fatalf("FormatUnits(nil) = %q, want 0", got)
	}
}
