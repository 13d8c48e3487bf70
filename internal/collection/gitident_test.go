package collection

import "testing"

func TestDetectGitIdentifier_NonRepo(t *testing.T) {
	dir := t.TempDir()
	if got := DetectGitIdentifier(dir); got != "" {
		t.Errorf("expected empty identifier for a non-repo directory, got %q", got)
	}
}
