package answer

import (
	"fmt"
	"strings"
)

// DefaultEmojiCount is the number of summarizing emoji requested.
const DefaultEmojiCount = 3

// SystemPrompt renders the fixed answer instructions for a language.
// lang is a display form such as "Spanish (es)".
func SystemPrompt(lang string, emojiCount int) string {
	if emojiCount <= 0 {
		emojiCount = DefaultEmojiCount
	}
	var sb strings.Builder
	sb.WriteString("Answer the following question by following the instructions.\n")
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Respond in a single sentence.\n")
	fmt.Fprintf(&sb, "2. Respond in the language (%s).\n", lang)
	sb.WriteString("3. Use the third person.\n")
	fmt.Fprintf(&sb, "4. Include %d emojis that summarize the content of the answer.\n", emojiCount)
	sb.WriteString("5. Make sure the answer is consistent for the same question.")
	return sb.String()
}
