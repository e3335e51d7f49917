package generation

import (
	"fmt"
	"strings"
)

// Numbered renders prompts as "1. ..." items separated by blank lines, the
// layout used when copying all prompts at once.
func Numbered(prompts []string) string {
	items := make([]string, len(prompts))
	for i, p := range prompts {
		items[i] = fmt.Sprintf("%d. %s", i+1, p)
	}
	return strings.Join(items, "\n\n")
}
