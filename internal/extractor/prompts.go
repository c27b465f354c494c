package extractor

import "github.com/MikeSquared-Agency/nova/internal/llm"

const systemPrompt = `You are Nova's requirements analyst. You turn an interview between Nova and a small-business owner into a requirements document a developer can build from.

## Output

One JSON object with these fields:
- title: short project title
- problemSummary: the core problem in 2-3 sentences
- requirements: list of {category, description, priority, manualHoursPerWeek}
  - category: the business area in the owner's words (e.g. "Rechnungen", "Terminbuchung", "Kommunikation")
  - description: one concrete, buildable requirement
  - priority: high | medium | low
  - manualHoursPerWeek: hours per week the owner said this task costs today, or null
- industry: the owner's industry
- teamSize: the team size as stated
- budgetRange: the budget as stated
- desiredOutcome: {summary, techStack, dataFields, acceptanceCriteria}
- estimatedHours: realistic development hours for the whole project (number)

## Rules

1. Use ONLY facts stated in the conversation. Never invent numbers, team sizes, budgets or hours.
2. If a fact was not mentioned, write exactly "not specified".
3. Translate everyday complaints into IT requirements:
   - "Termine vergessen" -> automatic appointment reminders
   - "Kunden rufen ständig an" -> online booking
   - "Rechnungen dauern ewig" -> automated invoice generation
4. Set priority by how often and how urgently the owner raised the topic. Do not guess.
5. Each description must be specific enough for a developer to act on. Rewrite vague wishes ("make it nice") into a concrete requirement only when the conversation makes the meaning unambiguous; otherwise leave them out.
6. Write the document in the language of the conversation.

Respond with the JSON object only.`

const userPromptHeader = "Interview transcript:\n\n"

var extractionSchema = llm.Schema{
	Name:        "record_specification",
	Description: "Record the requirements document extracted from the interview.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":          map[string]any{"type": "string"},
			"problemSummary": map[string]any{"type": "string"},
			"requirements": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category":           map[string]any{"type": "string"},
						"description":        map[string]any{"type": "string"},
						"priority":           map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
						"manualHoursPerWeek": map[string]any{"type": []string{"number", "null"}},
					},
					"required": []string{"category", "description", "priority"},
				},
			},
			"industry":    map[string]any{"type": "string"},
			"teamSize":    map[string]any{"type": "string"},
			"budgetRange": map[string]any{"type": "string"},
			"desiredOutcome": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary":            map[string]any{"type": "string"},
					"techStack":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"dataFields":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"acceptanceCriteria": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"estimatedHours": map[string]any{"type": "number"},
		},
		"required": []string{"title", "problemSummary", "requirements", "industry", "teamSize", "budgetRange", "desiredOutcome"},
	},
}
