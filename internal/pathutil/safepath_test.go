package pathutil

import (
	"strings"
	"testing"
)

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/normal/path", false},
		{"/path/./here", true},
		{"/path/../up", true},
		{".", true},
		{"..", true},
		{"", false},
		{"/...", false},     // a run of dots is not a dot segment
		{"/.hidden", false}, // dotfiles are fine
		{"/.well-known/security.txt", false},
		{"/path/to/.", true},
		{"/./", true},
		{"/../", true},
	}

	for _, tt := range tests {
		if got := HasDotSegments(tt.path); got != tt.want {
			t.Errorf("HasDotSegments(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func FuzzHasDotSegments(f *testing.F) {
	for _, seed := range []string{"foo/./bar", "foo/../bar", "./foo", "foo/.", ".", "..", "foo/bar", "..."} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, p string) {
		want := false
		for _, seg := range strings.Split(p, "/") {
			if seg == "." || seg == ".." {
				want = true
				break
			}
		}
		if got := HasDotSegments(p); got != want {
			t.Errorf("HasDotSegments(%q) = %v, want %v", p, got, want)
		}
	})
}
