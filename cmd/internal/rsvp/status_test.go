package rsvp

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Status
		err  bool
	}{
		{"YES", StatusYes, false},
		{" late_yes ", StatusLateYes, false},
		{"MAYBE", StatusMaybe, false},
		{"NO", StatusNo, false},
		{"", "", true},
		{"SOMETIMES", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if (err != nil) != tc.err {
			t.Fatalf("%q: unexpected err %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
	if _, err := ParseStatus("  "); !errors.Is(err, ErrStatusRequired) {
		t.Fatalf("expected ErrStatusRequired, got %v", err)
	}
}

func TestOptions_LabelsInDisplayOrder(t *testing.T) {
	t.Parallel()

	opts := Options()
	want := []StatusOption{
		{StatusYes, "Of Course!"},
		{StatusLateYes, "Sure, but late as usual"},
		{StatusMaybe, "Will do my best, but can't promise"},
		{StatusNo, "No. I'm just a crappy friend"},
	}
	if len(opts) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(opts))
	}
	for i := range want {
		if opts[i] != want[i] {
			t.Fatalf("option %d: expected %+v, got %+v", i, want[i], opts[i])
		}
	}
}
