// Package collection derives deterministic vector-store collection names
// from a project's git identity or filesystem location (spec.md §4.4).
package collection

import (
	"crypto/md5"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	densePrefix  = "code_chunks"
	hybridPrefix = "hybrid_code_chunks"

	maxSlugLen = 32
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Name returns the stable collection name for a project.
//
// If gitIdentifier is non-empty, the name is anchored to it
// ("git_{slug}_{hash8}"); otherwise it falls back to the resolved
// absolute project path, hashed alone. Collisions are accepted as
// vanishingly improbable; there is no suffix disambiguation.
func Name(projectPath, gitIdentifier string, isHybrid bool) (string, error) {
	prefix := densePrefix
	if isHybrid {
		prefix = hybridPrefix
	}

	if gitIdentifier != "" {
		return fmt.Sprintf("%s_git_%s_%s", prefix, slugify(gitIdentifier), hash8(gitIdentifier)), nil
	}

	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return "", fmt.Errorf("collection: resolve absolute path for %q: %w", projectPath, err)
	}
	return fmt.Sprintf("%s_%s", prefix, hash8(absPath)), nil
}

// slugify lowercases identifier, replaces runs of non-alphanumeric
// characters with a single underscore, and truncates to maxSlugLen.
func slugify(identifier string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(identifier), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}

// hash8 returns the first 8 hex characters of MD5(input).
func hash8(input string) string {
	sum := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", sum)[:8]
}
