package persona

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/nova/internal/llm"
)

// Control markers the model appends to its reply. They are stripped before
// the reply reaches the user.
const (
	MarkerPhaseDone        = "[[PHASE_DONE]]"
	MarkerAnalysisComplete = "[[ANALYSIS_COMPLETE]]"
)

const (
	replyMaxTokens   = 500
	replyTemperature = 0.7
)

// State is the per-turn input the prompt depends on besides history.
type State struct {
	Phase        int
	NonCommittal bool
}

// ParsedReply is a model reply with control markers interpreted.
type ParsedReply struct {
	Text             string
	PhaseDone        bool
	AnalysisComplete bool
}

// BuildPrompt assembles the generation context for the next assistant turn.
// history must already contain the latest user message.
func (p *Persona) BuildPrompt(history []llm.Turn, st State, digest string) llm.Prompt {
	turns := make([]llm.Turn, 0, len(history)+1)
	if len(history) == 0 || history[0].Role != llm.RoleUser {
		turns = append(turns, llm.Turn{Role: llm.RoleUser, Text: p.greetingInstruction()})
	}
	turns = append(turns, history...)

	return llm.Prompt{
		System:      p.systemPrompt(st, digest),
		Turns:       turns,
		MaxTokens:   replyMaxTokens,
		Temperature: llm.Float(replyTemperature),
	}
}

// GreetingPrompt builds the prompt for the assistant's opening message.
func (p *Persona) GreetingPrompt() llm.Prompt {
	return llm.Prompt{
		System:      p.systemPrompt(State{}, ""),
		Turns:       []llm.Turn{{Role: llm.RoleUser, Text: p.greetingInstruction()}},
		MaxTokens:   replyMaxTokens,
		Temperature: llm.Float(replyTemperature),
	}
}

// Choices returns the enumerated fallback options for a phase.
func (p *Persona) Choices(phase int) []string {
	return append([]string(nil), p.PhaseAt(phase).Choices...)
}

func (p *Persona) greetingInstruction() string {
	if p.GreetingInstruction != "" {
		return p.GreetingInstruction
	}
	return "Start the conversation."
}

func (p *Persona) systemPrompt(st State, digest string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.SystemInstructions))
	b.WriteString("\n\n")

	if len(p.ConversationRules) > 0 {
		b.WriteString("# STYLE RULES\n")
		for _, r := range p.ConversationRules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	b.WriteString("# INTERVIEW CONTRACT (always applies)\n")
	b.WriteString("- Ask exactly one question per message. Never two.\n")
	b.WriteString("- Work through the phases below strictly in order. Never skip a phase.\n")
	b.WriteString("- Stay in the current phase until its objective is met, however many turns that takes.\n")
	fmt.Fprintf(&b, "- When the current phase objective is met, end your message with %s.\n", MarkerPhaseDone)
	fmt.Fprintf(&b, "- Only in the final phase, once you have everything, end your message with %s.\n", MarkerAnalysisComplete)
	b.WriteString("\n# PHASES\n")

	current := st.Phase
	if current > p.LastPhase() {
		current = p.LastPhase()
	}
	for i, ph := range p.Phases {
		marker := " "
		if i == current {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %d. %s: %s\n", marker, i+1, ph.Title, ph.Objective)
	}
	ph := p.PhaseAt(current)
	fmt.Fprintf(&b, "\nCurrent phase: %d of %d (%s). Objective: %s\n", current+1, len(p.Phases), ph.Title, ph.Objective)

	if st.NonCommittal && len(ph.Choices) > 0 {
		b.WriteString("\n# THE OWNER IS UNSURE\n")
		b.WriteString("Do not repeat an open question. Offer exactly these options as a short numbered list and ask which fits best:\n")
		for i, c := range ph.Choices {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}

	if digest != "" {
		b.WriteString("\n# BACKGROUND: SIMILAR PROBLEMS SOLVED BEFORE\n")
		b.WriteString("Use this only to sharpen your questions. Never mention these to the owner or present them as earlier projects.\n")
		b.WriteString(digest)
		b.WriteString("\n")
	}

	return b.String()
}

// ParseReply strips control markers and trims the visible text after the
// first question so the user never gets more than one.
func (p *Persona) ParseReply(raw string) ParsedReply {
	out := ParsedReply{
		PhaseDone:        strings.Contains(raw, MarkerPhaseDone),
		AnalysisComplete: strings.Contains(raw, MarkerAnalysisComplete),
	}
	text := strings.ReplaceAll(raw, MarkerPhaseDone, "")
	text = strings.ReplaceAll(text, MarkerAnalysisComplete, "")
	text = strings.TrimSpace(keepFirstQuestion(text))

	if text == "" {
		if out.AnalysisComplete && p.ClosingMessage != "" {
			text = p.ClosingMessage
		} else {
			text = p.FallbackReply
		}
	}
	out.Text = text
	return out
}

func keepFirstQuestion(text string) string {
	first := strings.IndexRune(text, '?')
	if first < 0 {
		return text
	}
	if strings.ContainsRune(text[first+1:], '?') {
		return text[:first+1]
	}
	return text
}
