package tenant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/aigis/internal/database"
)

var (
	nonIdent    = regexp.MustCompile(`[^a-z0-9_]`)
	underscores = regexp.MustCompile(`_+`)
)

// slugifyEmail turns an email into a lowercase [a-z0-9_] fragment that
// starts with a letter.
func slugifyEmail(email string) string {
	base := strings.ToLower(strings.TrimSpace(email))
	base = nonIdent.ReplaceAllString(base, "_")
	base = strings.Trim(underscores.ReplaceAllString(base, "_"), "_")
	if base == "" {
		return "u"
	}
	if base[0] < 'a' || base[0] > 'z' {
		return "u_" + base
	}
	return base
}

// SchemaName returns the deterministic schema of a tenant's imported tables:
// <slug(email)>__u<id>, cut to the identifier limit while keeping the
// suffix so names stay unique.
func SchemaName(email string, userID int64) string {
	suffix := fmt.Sprintf("__u%d", userID)
	allowed := database.MaxIdentLen - len(suffix)
	if allowed < 1 {
		s := fmt.Sprintf("u%d", userID)
		return s[max(0, len(s)-database.MaxIdentLen):]
	}
	slug := slugifyEmail(email)
	if len(slug) > allowed {
		slug = slug[:allowed]
	}
	return slug + suffix
}
