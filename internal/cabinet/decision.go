package cabinet

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var decisionIDRe = regexp.MustCompile(`^news-\d{4}-\d{2}-\d{2}-[0-9a-f]{8}$`)

// DeriveDecisionID builds the stable identifier for a decision from its
// ISO date and title. The same title on the same date always maps to
// the same id, which is what downstream deduplication keys on.
func DeriveDecisionID(date, title string) string {
	sum := sha256.Sum256([]byte(title))
	return fmt.Sprintf("news-%s-%x", date, sum[:4])
}

// ValidDecisionID reports whether id matches the canonical
// news-YYYY-MM-DD-xxxxxxxx shape.
func ValidDecisionID(id string) bool {
	return decisionIDRe.MatchString(id)
}
