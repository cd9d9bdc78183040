package textlist

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{in: "salad, beer,  ice ,", want: []string{"salad", "beer", "ice"}},
		{in: "", want: []string{}},
		{in: " , ,", want: []string{}},
		{in: "chips", want: []string{"chips"}},
		{in: "hot dogs,buns", want: []string{"hot dogs", "buns"}},
	}

	for _, tc := range cases {
		got := Split(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Split(%q)=%#v want=%#v", tc.in, got, tc.want)
		}
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	t.Parallel()

	got := Join(Split("salad, beer,  ice ,"))
	if got != "salad, beer, ice" {
		t.Fatalf("round trip=%q", got)
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	got := Clean([]string{" grill ", "", "  "})
	if !reflect.DeepEqual(got, []string{"grill"}) {
		t.Fatalf("Clean=%#v", got)
	}
}
