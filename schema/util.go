package schema

import "strings"

// normalizeKey lowercases and trims a name for dedupe-key purposes only;
// it must not be used for display, which preserves original casing.
func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
