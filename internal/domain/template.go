package domain

// Template seeds a room's conversational register; the observer folds the
// prompt into its generation context.
type Template struct {
	Name   string `db:"name"`
	Prompt string `db:"prompt"`
}

// DefaultTemplateName is used when room creation names no template.
const DefaultTemplateName = "General"

func DefaultTemplates() []Template {
	return []Template{
		{Name: "General", Prompt: "Casual conversations and open discussions."},
		{Name: "Debate", Prompt: "Structured debates and argumentation."},
	}
}
