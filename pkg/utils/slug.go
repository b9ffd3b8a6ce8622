package utils

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slugIllegal   = regexp.MustCompile(`[^a-z0-9-_]`)
)

// Slugify lower-cases name, turns whitespace runs into "-" and drops every
// character outside [a-z0-9-_]. Used for repository and deployment names.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return slugIllegal.ReplaceAllString(s, "")
}

// DeploymentName is the looser normalisation the deployment routes apply:
// lower-case with whitespace turned into "-", nothing stripped.
func DeploymentName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
