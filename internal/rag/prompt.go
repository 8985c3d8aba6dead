package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/insightbot/internal/llm"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/pkg/utils"
)

// Prompt is everything sent to the generator for one question.
type Prompt struct {
	System   string
	Context  []string // formatted records, nearest first
	History  []models.Turn
	Question string
}

// Messages renders the prompt as a chat transcript: one system message carrying
// the instruction and retrieved context, the remembered turns, then the question.
func (p *Prompt) Messages() []llm.Message {
	var sys strings.Builder
	sys.WriteString(p.System)
	if len(p.Context) > 0 {
		sys.WriteString("\n\nContext:\n")
		for i, c := range p.Context {
			fmt.Fprintf(&sys, "[%d] %s\n", i+1, c)
		}
	}
	msgs := make([]llm.Message, 0, 2+2*len(p.History))
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: strings.TrimRight(sys.String(), "\n")})
	for _, t := range p.History {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.UserQuery},
			llm.Message{Role: llm.RoleAssistant, Content: t.BotResponse},
		)
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: p.Question})
}

// FormatRecord renders a record's metadata as "key: value" pairs in key order,
// one line per record, skipping empty cells.
func FormatRecord(rec models.Record) string {
	parts := make([]string, 0, len(rec.Metadata))
	for _, k := range rec.Metadata.Keys() {
		v := utils.CollapseSpace(rec.Metadata[k])
		if v == "" {
			continue
		}
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, "; ")
}

const condenseInstruction = "Given the following conversation and a follow up question, " +
	"rephrase the follow up question to be a standalone question, in its original language. " +
	"Reply with the standalone question only."

// condenseMessages asks the generator to rewrite question so it stands without history.
func condenseMessages(history []models.Turn, question string) []llm.Message {
	var b strings.Builder
	b.WriteString("Chat History:\n")
	for _, t := range history {
		fmt.Fprintf(&b, "Human: %s\nAssistant: %s\n", t.UserQuery, t.BotResponse)
	}
	fmt.Fprintf(&b, "Follow Up Input: %s\nStandalone question:", question)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: condenseInstruction},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
