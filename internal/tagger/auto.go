package tagger

import "strings"

// SchemeTag generates a scheme-based tag for a target URL
// Returns a tag in the format "scheme:S" where S is the URL scheme,
// or an empty string when the target carries no scheme
func SchemeTag(target string) string {
	scheme, _, ok := strings.Cut(target, "://")
	if !ok || scheme == "" {
		return ""
	}
	return "scheme:" + strings.ToLower(scheme)
}

// SectionTag generates a section-based tag for a registry section title
// Returns a tag in the format "section:T" with the title lowercased
func SectionTag(title string) string {
	title = strings.Join(strings.Fields(strings.ToLower(title)), " ")
	if title == "" {
		return ""
	}
	return "section:" + title
}
