// Package prompt assembles the single user message sent to the chat model.
package prompt

import (
	"strings"

	"github.com/poiesic/docqa/core"
)

const (
	// Separator goes between retrieved document contents.
	Separator = "\n\n---\n\n"

	// EmptyHistory stands in for a conversation with no prior turns.
	EmptyHistory = "(no prior context)\n"

	preamble = "You are a helpful assistant.\n\n"
)

// Build renders the prompt. Documents keep the retriever's order and history
// turns are rendered oldest first. Build does no I/O and is deterministic.
func Build(question string, docs []*core.RetrievedDoc, history []*core.ConversationTurn) string {
	var b strings.Builder
	b.WriteString(preamble)

	b.WriteString("Conversation so far:\n")
	b.WriteString(History(history))
	b.WriteString("\n")

	b.WriteString("Context from documents:\n")
	b.WriteString(Context(docs))
	b.WriteString("\n\n")

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// Context joins document contents with Separator.
func Context(docs []*core.RetrievedDoc) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, Separator)
}

// History renders turns as User/Assistant line pairs, or EmptyHistory.
func History(turns []*core.ConversationTurn) string {
	if len(turns) == 0 {
		return EmptyHistory
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("User: ")
		b.WriteString(t.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Answer)
		b.WriteString("\n")
	}
	return b.String()
}
