package chat

import (
	"fmt"
	"strings"
)

// Assembler combines grounding text, history, and the user question into a
// final ordered message list.
type Assembler interface {
	Assemble(document, snippets string, history []Message, question string) []Message
}

// Refusal is the exact sentence the model is instructed to reply with when a
// question falls outside the configured subject. Kept stable so callers can
// compare replies against it.
func Refusal(topic string) string {
	return fmt.Sprintf("I'm sorry, I can only answer questions related to the %s course material. Please ask a question about the content of the document.", topic)
}

// GroundedAssembler builds the message list sent to the model: one system
// instruction carrying the scoping rules and grounding text, then the history
// turns in chronological order, then the question as the final user message.
type GroundedAssembler struct {
	Topic string
}

// Assemble builds the final message list: system + history + user.
func (a *GroundedAssembler) Assemble(document, snippets string, history []Message, question string) []Message {
	messages := make([]Message, 0, 1+len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: a.systemPrompt(document, snippets)})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: question})
	return messages
}

func (a *GroundedAssembler) systemPrompt(document, snippets string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an educational assistant for a course on %s.\n\n", a.Topic)
	b.WriteString("STRICT RULES:\n")
	fmt.Fprintf(&b, "1. Only answer questions related to %s: the course material below and general knowledge of the field.\n", a.Topic)
	fmt.Fprintf(&b, "2. If the question is unrelated, reply exactly: %q\n", Refusal(a.Topic))
	b.WriteString("3. Prefer the course material over the web results when both could answer; use web results only to fill gaps, in particular for questions about current events in the field.\n")
	b.WriteString("4. Never invent information that appears in neither source. If the information is unavailable, say so explicitly.\n")
	b.WriteString("5. Stay on topic across the whole conversation; earlier turns never justify drifting away from the subject.\n")
	b.WriteString("6. Answer clearly and in a didactic tone.\n\n")
	b.WriteString("COURSE MATERIAL:\n")
	b.WriteString(document)
	if strings.TrimSpace(snippets) != "" {
		b.WriteString("\n\nWEB RESULTS:\n")
		b.WriteString(snippets)
	}
	return b.String()
}
