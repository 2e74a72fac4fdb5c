package utils

import (
	"math"
	"testing"
)

func TestParseIntOr(t *testing.T) {
	cases := map[string]struct {
		def, want int
	}{
		"":                         {def: 20, want: 20},
		"   ":                      {def: 20, want: 20},
		"7":                        {def: 0, want: 7},
		" 42 ":                     {def: 0, want: 42},
		"-3":                       {def: 1, want: -3},
		"0100":                     {def: 0, want: 100},
		"ten":                      {def: 5, want: 5},
		"2.5":                      {def: 5, want: 5},
		"999999999999999999999999": {def: -1, want: -1},
	}
	for in, tc := range cases {
		if got := ParseIntOr(in, tc.def); got != tc.want {
			t.Errorf("ParseIntOr(%q, %d) = %d, want %d", in, tc.def, got, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(0, 1, 100); got != 1 {
		t.Fatalf("below range: %d", got)
	}
	if got := Clamp(250, 1, 100); got != 100 {
		t.Fatalf("above range: %d", got)
	}
	if got := Clamp(20, 1, math.MaxInt); got != 20 {
		t.Fatalf("in range: %d", got)
	}
	if got := Clamp(0.2, 0.0, 0.5); got != 0.2 {
		t.Fatalf("float: %v", got)
	}
}
