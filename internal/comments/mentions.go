package comments

import (
	"regexp"
	"strings"

	"github.com/nhle/epikom-hub/internal/model"
)

// mentionPattern matches @name tokens (e.g., @ana, @carl_b).
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ParseMentions resolves every @name token in text to the first user
// whose lower-cased full name contains the name or whose first name
// equals it. Returns a deduplicated list of user IDs preserving the order
// of first occurrence.
func ParseMentions(text string, users []model.Profile) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		id, ok := resolve(strings.ToLower(m[1]), users)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

func resolve(name string, users []model.Profile) (string, bool) {
	for _, u := range users {
		full := strings.ToLower(u.FullName)
		if strings.Contains(full, name) || strings.ToLower(u.FirstName()) == name {
			return u.ID, true
		}
	}
	return "", false
}

// HighlightMentions rewrites every @name token in text with render.
func HighlightMentions(text string, render func(token string) string) string {
	return mentionPattern.ReplaceAllStringFunc(text, render)
}
