package citation

import "strings"

// GenerateIndexName derives a store-safe index name from a search key:
// lowercase, spaces to hyphens, truncated to maxLen, with a fixed suffix so
// a truncated name never ends in a hyphen.
func GenerateIndexName(searchKey string, maxLen int) string {
	name := strings.ToLower(strings.TrimSpace(searchKey))
	name = strings.ReplaceAll(name, " ", "-")
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name + "a"
}
