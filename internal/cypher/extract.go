package cypher

import (
	"regexp"
	"strings"
)

var (
	fencedBlock = regexp.MustCompile("(?s)```(.*?)```")
	languageTag = regexp.MustCompile(`^(?i:cypher)[ \t]*(\r?\n|$)`)
)

// ExtractCypher returns the first triple-backtick block of text with any
// "cypher" language tag removed, or the trimmed text when it has no block.
// The tag is only recognised when it stands alone on the opening line, so a
// query beginning with the CYPHER option keyword is kept intact.
func ExtractCypher(text string) string {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(languageTag.ReplaceAllString(m[1], ""))
}
