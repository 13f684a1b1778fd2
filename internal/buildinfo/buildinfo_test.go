package buildinfo

import "testing"

func TestShort(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()

	Version, Commit = "dev", "unknown"
	if got := Short(); got != "dev" {
		t.Fatalf("expected dev, got %q", got)
	}

	Commit = "0123456789abcdef"
	if got := Short(); got != "0123456789ab" {
		t.Fatalf("expected truncated commit, got %q", got)
	}

	Version = "v1.2.0"
	if got := Short(); got != "v1.2.0" {
		t.Fatalf("expected version, got %q", got)
	}
	if got := UserAgent(); got != "globe/v1.2.0" {
		t.Fatalf("unexpected user agent %q", got)
	}
}
