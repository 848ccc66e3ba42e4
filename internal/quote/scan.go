package quote

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// refPattern matches quote placeholders: brace-delimited, literal keyword,
// colon, decimal digits. Anything else ({quote:}, {quote:abc}, quote:5) is
// not a match and stays literal text.
var refPattern = regexp.MustCompile(`\{quote:(\d+)\}`)

// FindReferenceIDs returns every quoted node ID embedded in text, in order
// of first appearance. Duplicates are preserved: a node may quote the same
// target twice and each occurrence is substituted independently.
func FindReferenceIDs(text string) []int64 {
	if text == "" {
		return nil
	}
	matches := refPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			// digit run too long for int64; treat as not a reference
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// HasReferences reports whether text contains at least one quote placeholder.
// Cheap guard used before running the resolvers.
func HasReferences(text string) bool {
	return strings.Contains(text, "{quote:") && refPattern.MatchString(text)
}

// Placeholder returns the literal placeholder form for id.
func Placeholder(id int64) string {
	return fmt.Sprintf("{quote:%d}", id)
}

// ReplaceReferences rewrites every placeholder in text with fn(id).
// Malformed placeholders stay literal, matching FindReferenceIDs.
func ReplaceReferences(text string, fn func(id int64) string) string {
	if !HasReferences(text) {
		return text
	}
	return refPattern.ReplaceAllStringFunc(text, func(m string) string {
		id, err := strconv.ParseInt(m[len("{quote:"):len(m)-1], 10, 64)
		if err != nil {
			return m
		}
		return fn(id)
	})
}
