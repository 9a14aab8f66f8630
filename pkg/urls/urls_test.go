package urls_test

import (
	"reflect"
	"testing"

	"vidbatch/pkg/urls"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "blank and whitespace-only lines are dropped",
			input: "a\n\n  \nb",
			want:  []string{"a", "b"},
		},
		{
			name:  "lines are trimmed",
			input: "  https://x.com/a/status/1 \n\thttps://x.com/b/status/2\t",
			want:  []string{"https://x.com/a/status/1", "https://x.com/b/status/2"},
		},
		{
			name:  "mixed line endings",
			input: "a\r\nb\rc\nd",
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "duplicates keep first position",
			input: "b\na\nb\nc\na",
			want:  []string{"b", "a", "c"},
		},
		{
			name:  "malformed urls are kept",
			input: "not a url\nhttp//broken",
			want:  []string{"not a url", "http//broken"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "only whitespace",
			input: " \n\t\n\r\n",
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := urls.SplitLines(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitLines(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
