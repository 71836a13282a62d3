// Package mentions finds @handles in user text and turns them into Mention
// records and notifications.
package mentions

import (
	"iter"
	"regexp"
)

var handlePattern = regexp.MustCompile(`@(\w+)`)

// ExtractHandles yields each distinct handle in text in first-seen order,
// without the leading @ and with case preserved. The sequence can be ranged
// over any number of times.
func ExtractHandles(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, m := range handlePattern.FindAllStringSubmatchIndex(text, -1) {
			handle := text[m[2]:m[3]]
			if _, ok := seen[handle]; ok {
				continue
			}
			seen[handle] = struct{}{}
			if !yield(handle) {
				return
			}
		}
	}
}
