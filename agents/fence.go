package agents

import "strings"

// CleanJSON strips a markdown code fence around a model reply.
//
// A ```json fence is preferred over a bare ``` fence. Text outside the
// first fenced block is dropped; an unterminated fence leaves the text as
// is. The result is trimmed.
func CleanJSON(text string) string {
	for _, open := range []string{"```json", "```"} {
		start := strings.Index(text, open)
		if start < 0 {
			continue
		}
		start += len(open)
		if end := strings.Index(text[start:], "```"); end > 0 {
			text = strings.TrimSpace(text[start : start+end])
		}
		break
	}
	return strings.TrimSpace(text)
}
