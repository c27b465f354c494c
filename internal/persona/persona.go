// Package persona holds the interview personas and turns a session's state
// into the prompt sent to the generation provider.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultTable []byte

type Phase struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Objective string   `yaml:"objective"`
	Choices   []string `yaml:"choices"`
}

// Persona is a named bundle of instructions and rules. Behaviour differences
// between personas live here, not in code.
type Persona struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Language            string   `yaml:"language"`
	SystemInstructions  string   `yaml:"system_instructions"`
	ConversationRules   []string `yaml:"conversation_rules"`
	GreetingInstruction string   `yaml:"greeting_instruction"`
	FallbackGreeting    string   `yaml:"fallback_greeting"`
	FallbackReply       string   `yaml:"fallback_reply"`
	ClosingMessage      string   `yaml:"closing_message"`
	NonCommittalPhrases []string `yaml:"noncommittal_phrases"`
	Phases              []Phase  `yaml:"phases"`
}

type table struct {
	Personas []Persona `yaml:"personas"`
}

// Registry is a read-only set of personas keyed by id.
type Registry struct {
	personas map[string]*Persona
}

// Default returns the built-in persona table.
func Default() (*Registry, error) {
	return Parse(defaultTable)
}

// LoadFile reads a persona table from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if len(t.Personas) == 0 {
		return nil, fmt.Errorf("persona table is empty")
	}

	r := &Registry{personas: make(map[string]*Persona, len(t.Personas))}
	for i := range t.Personas {
		p := t.Personas[i]
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("persona %q: %w", p.ID, err)
		}
		if _, dup := r.personas[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		r.personas[p.ID] = &p
	}
	return r, nil
}

func (p *Persona) validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("missing id")
	case strings.TrimSpace(p.SystemInstructions) == "":
		return fmt.Errorf("missing system_instructions")
	case p.FallbackGreeting == "" || p.FallbackReply == "":
		return fmt.Errorf("fallback_greeting and fallback_reply are required")
	case len(p.Phases) == 0:
		return fmt.Errorf("at least one phase is required")
	}
	for i, ph := range p.Phases {
		if ph.ID == "" || ph.Objective == "" {
			return fmt.Errorf("phase %d needs id and objective", i)
		}
	}
	return nil
}

func (r *Registry) Get(id string) (*Persona, bool) {
	p, ok := r.personas[id]
	return p, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastPhase is the index of the final phase.
func (p *Persona) LastPhase() int { return len(p.Phases) - 1 }

// PhaseAt clamps i into the valid phase range.
func (p *Persona) PhaseAt(i int) Phase {
	if i < 0 {
		i = 0
	}
	if i > p.LastPhase() {
		i = p.LastPhase()
	}
	return p.Phases[i]
}

// IsNonCommittal reports whether a short user answer avoids committing to
// anything ("weiß nicht", "whatever").
func (p *Persona) IsNonCommittal(text string) bool {
	normalized := fold(text)
	if normalized == "" {
		return false
	}
	if len(strings.Fields(normalized)) > 8 {
		return false
	}
	for _, phrase := range p.NonCommittalPhrases {
		f := fold(phrase)
		if f == "" {
			continue
		}
		if normalized == f || strings.Contains(" "+normalized+" ", " "+f+" ") {
			return true
		}
	}
	return false
}

// fold lowercases, strips diacritics and punctuation (keeping symbols such
// as emoji) and collapses whitespace.
func fold(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r == '\'' || r == '’':
		case unicode.IsPunct(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
