package collection

import (
	"os/exec"
	"strings"
)

// DetectGitIdentifier resolves the git remote identity of projectPath for
// CollectionNamer's anchor input (spec.md §4.4), grounded on
// tOgg1-code-organization's internal/git.getRemote: shell out to the git
// binary rather than link a git-plumbing library, since only the remote
// URL string is needed. Returns "" (not an error) when the path isn't a
// git repository or carries no "origin" remote — CollectionNamer then
// falls back to the absolute-path identity.
func DetectGitIdentifier(projectPath string) string {
	out, err := exec.Command("git", "-C", projectPath, "remote", "get-url", "origin").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
