package observer

import (
	"strings"

	"github.com/parleyhq/session-service/internal/domain"
)

// NoReplySentinel is what the model answers when it has nothing to add.
const NoReplySentinel = "[NO_REPLY]"

// BuildPrompt renders the recent conversation into the observer's generation
// prompt. templatePrompt, when non-empty, sets the room's conversational
// register.
func BuildPrompt(roomID, templatePrompt string, msgs []domain.Message) string {
	var b strings.Builder
	b.WriteString("You are an AI observer in a chat room (")
	b.WriteString(roomID)
	b.WriteString("). Occasionally, you provide helpful, insightful, or fun comments, but you do not dominate the conversation.")
	if templatePrompt != "" {
		b.WriteString(" The room's theme: ")
		b.WriteString(templatePrompt)
	}
	b.WriteString(" Here is the recent conversation:\n")
	for _, m := range msgs {
		name := m.Username
		if name == "" {
			name = "User"
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nAs the AI Observer, reply with a short, relevant, and friendly message. If you have nothing to add, reply with \"")
	b.WriteString(NoReplySentinel)
	b.WriteString("\".\nAI Observer:")
	return b.String()
}
