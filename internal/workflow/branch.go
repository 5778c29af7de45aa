// Package workflow drives the coder/reviewer loop that turns one
// code-change issue into one merged pull request, or marks it failed
// after the round cap.
package workflow

import (
	"strings"

	"github.com/google/uuid"
)

const (
	branchPrefix = "ai-dev/"
	slugMaxLen   = 40
)

// BranchName derives a work branch from an issue title: a bounded slug
// plus a random suffix so retries of the same issue never collide.
func BranchName(title string) string {
	return branchPrefix + Slug(title, slugMaxLen) + "-" + uuid.NewString()[:8]
}

// Slug lowercases s, maps every non-alphanumeric run to a single dash,
// and clips to max without a trailing dash.
func Slug(s string, max int) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		slug = "task"
	}
	if len(slug) > max {
		slug = strings.TrimSuffix(slug[:max], "-")
	}
	return slug
}
