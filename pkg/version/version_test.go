package version

import "testing"

func TestVersionIsSet(t *testing.T) {
	if Version() == "" {
		t.Fatal("version.txt is empty")
	}
}

func TestWithRevision(t *testing.T) {
	tests := []struct {
		rev   string
		dirty bool
		want  string
	}{
		{"", false, "1.0.0"},
		{"abc", false, "1.0.0+abc"},
		{"0123456789abcdef", true, "1.0.0+0123456789ab-dirty"},
	}
	for _, tt := range tests {
		if got := withRevision("1.0.0", tt.rev, tt.dirty); got != tt.want {
			t.Errorf("withRevision(%q, %v) = %q, want %q", tt.rev, tt.dirty, got, tt.want)
		}
	}
}
