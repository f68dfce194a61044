package llm

import (
	"fmt"
	"strings"
)

// rolePrompts maps the closed role tag set to behavioral prompt templates.
// Unknown roles fall back to the expert template.
var rolePrompts = map[string]string{
	"skeptic": "You are %s, a critical skeptic and devil's advocate. " +
		"Challenge assumptions, poke holes in arguments, demand evidence, " +
		"and highlight risks or overlooked downsides. Be sharp but fair.",
	"optimist": "You are %s, an enthusiastic optimist. " +
		"Highlight opportunities, positive outcomes, and creative possibilities. " +
		"Acknowledge valid concerns but reframe them constructively.",
	"expert": "You are %s, a domain expert. " +
		"Provide factual, well-researched analysis grounded in evidence. " +
		"Cite specific data points, research, or established principles.",
	"pragmatist": "You are %s, a practical pragmatist. " +
		"Focus on real-world feasibility, implementation details, costs, " +
		"and actionable steps. Bridge theory and practice.",
	"synthesizer": "You are %s, a balanced synthesizer. " +
		"Identify common ground between different viewpoints, summarize key " +
		"arguments, and propose integrative solutions.",
}

const debateContextTemplate = "\n\nYou are participating in a structured debate on the topic:\n" +
	"%q\n%s" +
	"\nRespond concisely in 2-4 sentences. Be direct and pithy. " +
	"Address the previous speakers' points directly when relevant. Stay in character."

const consensusPromptTemplate = "You are a neutral judge drawing a final conclusion for a multi-agent debate.\n\n" +
	"Topic: %q\n\n" +
	"Full debate transcript:\n%s\n\n" +
	"Write a clear, definitive conclusion in 3-5 sentences. " +
	"State plainly what the participants agreed on, where they disagreed, " +
	"and what the most compelling takeaway is. " +
	"Write as a decisive verdict — not a wishy-washy summary. " +
	"Do NOT use bullet points, headers, or labels. Just write plain prose."

const openingPrompt = "The debate begins. Please present your opening argument on: %s"

const respondPrompt = "Please respond to the discussion above, staying in your role."

// SystemPrompt builds the full role-flavored instruction for one agent's
// turn from the role template plus the debate topic and optional context.
func SystemPrompt(name, role, topic, description string) string {
	tmpl, ok := rolePrompts[role]
	if !ok {
		tmpl = rolePrompts["expert"]
	}
	descBlock := ""
	if description != "" {
		descBlock = fmt.Sprintf("\nContext: %q\n", description)
	}
	return fmt.Sprintf(tmpl, name) + fmt.Sprintf(debateContextTemplate, topic, descBlock)
}

// HistoryEntry is one prior utterance replayed into a generation request.
// Self marks the requesting agent's own turns, which are replayed in its
// own voice; all other speakers, human ones included, are name-prefixed.
type HistoryEntry struct {
	Speaker string
	Content string
	Self    bool
}

// TurnMessages replays the history as alternating self/other chat turns and
// appends the closing instruction: an opening-argument prompt when the
// history is empty, a respond prompt otherwise.
func TurnMessages(topic string, history []HistoryEntry) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, entry := range history {
		if entry.Self {
			messages = append(messages, Message{Role: "assistant", Content: entry.Content})
			continue
		}
		messages = append(messages, Message{
			Role:    "user",
			Content: fmt.Sprintf("[%s]: %s", entry.Speaker, entry.Content),
		})
	}

	if len(history) == 0 {
		messages = append(messages, Message{Role: "user", Content: fmt.Sprintf(openingPrompt, topic)})
	} else {
		messages = append(messages, Message{Role: "user", Content: respondPrompt})
	}
	return messages
}

// TranscriptLine formats one turn for the consensus transcript.
func TranscriptLine(speaker string, turn int, content string) string {
	return fmt.Sprintf("[%s] (Turn %d): %s", speaker, turn, content)
}

// ConsensusPrompt builds the fixed neutral-judge instruction over the full
// transcript.
func ConsensusPrompt(topic string, transcriptLines []string) string {
	return fmt.Sprintf(consensusPromptTemplate, topic, strings.Join(transcriptLines, "\n\n"))
}
