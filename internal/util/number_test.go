package util

import "testing"

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "integer", input: "120", want: 120},
		{name: "thousand with space", input: "1 000", want: 1000},
		{name: "decimal comma", input: "1,5", want: 1.5},
		{name: "decimal dot", input: "1.5", want: 1.5},
		{name: "three decimals", input: "1.000", want: 1},
		{name: "eighth", input: "0.125", want: 0.125},
		{name: "pi", input: "3.141", want: 3.141},
		{name: "body temperature", input: "36.625", want: 36.625},
		{name: "dotted millions", input: "1.000.000", want: 1000000},
		{name: "dot groups with decimal comma", input: "1.000,5", want: 1000.5},
		{name: "exponent", input: "1e3", want: 1000},
		{name: "thousand comma", input: "12,000.25", want: 12000.25},
		{name: "negative", input: "-7", want: -7},
		{name: "padded", input: "  97 ", want: 97},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseNumber(tc.input)
			if !ok {
				t.Fatalf("not parsed")
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseNumberRejects(t *testing.T) {
	for _, in := range []string{"", "x", "120/100", "12a", "Inf", "NaN", "-infinity", "0x1p3", "1,2,3.4,5"} {
		if _, ok := ParseNumber(in); ok {
			t.Fatalf("%q parsed", in)
		}
	}
}
