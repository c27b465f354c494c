package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/nova/internal/llm"
)

func mustDefault(t *testing.T) *Registry {
	t.Helper()
	r, err := Default()
	if err != nil {
		t.Fatalf("load default personas: %v", err)
	}
	return r
}

func TestDefault_HasBothPersonas(t *testing.T) {
	r := mustDefault(t)

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "analyst" || ids[1] != "translator" {
		t.Fatalf("unexpected persona ids %v", ids)
	}
	nova, _ := r.Get("translator")
	if len(nova.Phases) != 6 {
		t.Errorf("expected 6 phases, got %d", len(nova.Phases))
	}
	if nova.Phases[0].ID != "hook" || nova.Phases[5].ID != "closing" {
		t.Errorf("unexpected phase order: %+v", nova.Phases)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "personas: []"},
		{"no phases", "personas:\n  - id: a\n    system_instructions: x\n    fallback_greeting: g\n    fallback_reply: r\n"},
		{"missing fallback", "personas:\n  - id: a\n    system_instructions: x\n    phases:\n      - id: p\n        objective: o\n"},
		{"duplicate", strings.Repeat("  - id: a\n    system_instructions: x\n    fallback_greeting: g\n    fallback_reply: r\n    phases:\n      - id: p\n        objective: o\n", 2)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.yaml
			if tc.name == "duplicate" {
				data = "personas:\n" + tc.yaml
			}
			if _, err := Parse([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	data := "personas:\n  - id: terse\n    system_instructions: be terse\n    fallback_greeting: hi?\n    fallback_reply: sorry\n    phases:\n      - id: only\n        objective: get the problem\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Get("terse"); !ok {
		t.Fatal("expected persona terse")
	}
}

func TestIsNonCommittal(t *testing.T) {
	r := mustDefault(t)
	nova, _ := r.Get("translator")
	analyst, _ := r.Get("analyst")

	tests := []struct {
		p    *Persona
		text string
		want bool
	}{
		{nova, "Weiß nicht", true},
		{nova, "keine Ahnung!", true},
		{nova, "egal", true},
		{nova, "🤷", true},
		{nova, "Rechnungen schreiben dauert ewig, vielleicht 5h/Woche", false},
		{analyst, "I don't know", true},
		{analyst, "whatever.", true},
		{analyst, "I don't know exactly how long it takes but it is at least two full days every single month", false},
		{analyst, "", false},
	}
	for _, tc := range tests {
		if got := tc.p.IsNonCommittal(tc.text); got != tc.want {
			t.Errorf("IsNonCommittal(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestBuildPrompt_PrependsGreetingWhenHistoryStartsWithAssistant(t *testing.T) {
	r := mustDefault(t)
	nova, _ := r.Get("translator")

	history := []llm.Turn{
		{Role: llm.RoleAssistant, Text: "Hey! Was nervt dich?"},
		{Role: llm.RoleUser, Text: "Rechnungen"},
	}
	p := nova.BuildPrompt(history, State{Phase: 1}, "")

	if len(p.Turns) != 3 || p.Turns[0].Role != llm.RoleUser {
		t.Fatalf("expected leading user turn, got %+v", p.Turns)
	}
	if !strings.Contains(p.System, "Current phase: 2 of 6 (Trichter)") {
		t.Errorf("system prompt missing current phase:\n%s", p.System)
	}
	if !strings.Contains(p.System, "exactly one question") {
		t.Error("system prompt missing one-question rule")
	}
	if strings.Contains(p.System, "SIMILAR PROBLEMS") {
		t.Error("digest section must be absent without a digest")
	}
}

func TestBuildPrompt_DigestAndChoices(t *testing.T) {
	r := mustDefault(t)
	nova, _ := r.Get("translator")

	digest := "Handwerk: Rechnungen dauern -> Rechnungsvorlagen mit Autoversand"
	p := nova.BuildPrompt([]llm.Turn{{Role: llm.RoleUser, Text: "weiß nicht"}}, State{Phase: 2, NonCommittal: true}, digest)

	if !strings.Contains(p.System, digest) {
		t.Error("expected digest in system prompt")
	}
	if !strings.Contains(p.System, "Never mention these") {
		t.Error("expected digest usage restriction")
	}
	for i, c := range nova.Phases[2].Choices {
		if !strings.Contains(p.System, c) {
			t.Errorf("choice %d %q missing from prompt", i, c)
		}
	}
}

func TestParseReply(t *testing.T) {
	r := mustDefault(t)
	nova, _ := r.Get("translator")

	tests := []struct {
		name     string
		raw      string
		text     string
		phase    bool
		complete bool
	}{
		{"plain", "Wie oft machst du das?", "Wie oft machst du das?", false, false},
		{"two questions", "Verstehe. Wie oft? Und wie lange dauert das?", "Verstehe. Wie oft?", false, false},
		{"phase marker", "Alles klar. Wie groß ist dein Team? [[PHASE_DONE]]", "Alles klar. Wie groß ist dein Team?", true, false},
		{"complete only", "[[ANALYSIS_COMPLETE]]", nova.ClosingMessage, false, true},
		{"empty", "   ", nova.FallbackReply, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := nova.ParseReply(tc.raw)
			if got.Text != tc.text {
				t.Errorf("text = %q, want %q", got.Text, tc.text)
			}
			if got.PhaseDone != tc.phase || got.AnalysisComplete != tc.complete {
				t.Errorf("markers = (%v,%v), want (%v,%v)", got.PhaseDone, got.AnalysisComplete, tc.phase, tc.complete)
			}
		})
	}
}

func TestPhaseAt_Clamps(t *testing.T) {
	r := mustDefault(t)
	nova, _ := r.Get("translator")

	if nova.PhaseAt(-1).ID != "hook" {
		t.Error("negative index should clamp to first phase")
	}
	if nova.PhaseAt(99).ID != "closing" {
		t.Error("large index should clamp to last phase")
	}
}
