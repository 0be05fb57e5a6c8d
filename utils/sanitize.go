package utils

import "github.com/microcosm-cc/bluemonday"

// The board renders plain text only, so strip all markup instead of allowing
// a UGC subset.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize removes HTML from user supplied text to prevent XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
