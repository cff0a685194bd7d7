package parser

import "testing"

func TestTitleCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "bench press", want: "Bench Press"},
		{in: "Bench Press", want: "Bench Press"}, // idempotent
		{in: "  lat   pulldown  ", want: "Lat Pulldown"},
		{in: "BENCH PRESS", want: "Bench Press"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	}

	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractWeight(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }

	tests := []struct {
		in   string
		want *float64
	}{
		{in: "185", want: f(185)},
		{in: "185 lbs", want: f(185)},
		{in: "85kg", want: f(85)},
		{in: "n/a", want: nil},
		{in: "", want: nil},
		// Legacy rule: all non-digits stripped, decimal point included.
		{in: "2.5 plates", want: f(25)},
	}

	for _, tt := range tests {
		got := extractWeight(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("extractWeight(%q) = %f, want absent", tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("extractWeight(%q) = absent, want %f", tt.in, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("extractWeight(%q) = %f, want %f", tt.in, *got, *tt.want)
		}
	}
}

func TestMergeNotes(t *testing.T) {
	t.Parallel()

	s := func(v string) *string { return &v }

	tests := []struct {
		duration string
		notes    string
		want     *string
	}{
		{duration: "10 mins", notes: "", want: s("10 mins")},
		{duration: "10 mins", notes: "felt great", want: s("10 mins - felt great")},
		{duration: "", notes: "felt great", want: s("felt great")},
		{duration: "", notes: "", want: nil},
		{duration: "  10 mins  ", notes: "  felt great  ", want: s("10 mins - felt great")},
	}

	for _, tt := range tests {
		got := mergeNotes(tt.duration, tt.notes)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("mergeNotes(%q, %q) = %q, want absent", tt.duration, tt.notes, *got)
		case tt.want != nil && got == nil:
			t.Errorf("mergeNotes(%q, %q) = absent, want %q", tt.duration, tt.notes, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("mergeNotes(%q, %q) = %q, want %q", tt.duration, tt.notes, *got, *tt.want)
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: `[{"a":1}]`, want: `[{"a":1}]`},
		{name: "plain fence", in: "```\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "json fence", in: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "surrounding whitespace", in: "  \n[]\n ", want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
