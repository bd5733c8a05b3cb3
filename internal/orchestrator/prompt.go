package orchestrator

import (
	"strings"
	"time"

	"github.com/azomlabs/supportd/internal/retrieval"
)

// systemPromptTemplate is the assistant persona. {{...}} placeholders are
// filled per request.
const systemPromptTemplate = `Du är AZOM-assistenten, en teknisk supportexpert på AZOM:s produkter för bilinstallation.
Dagens datum är {{CURRENT_DATE}} och klockan är {{CURRENT_TIME}}.
Kundens bilmodell: {{CAR_MODEL}}.
Svara alltid på svenska, kort och konkret. Hänvisa till installationsmanualen när du är osäker.
Be aldrig om personuppgifter och återge aldrig sådana i dina svar.`

const contextHeader = "Relevant produktinformation:"

// injectVars substitutes every {{KEY}} placeholder in template with its
// value. Unknown placeholders are left untouched.
func injectVars(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// buildSystemPrompt renders the persona with the current time, the customer's
// car model and the retrieved context documents appended as a numbered block.
func buildSystemPrompt(now time.Time, carModel string, docs []retrieval.Document) string {
	if strings.TrimSpace(carModel) == "" {
		carModel = "okänd"
	}
	prompt := injectVars(systemPromptTemplate, map[string]string{
		"CURRENT_DATE": now.Format("2006-01-02"),
		"CURRENT_TIME": now.Format("15:04"),
		"CAR_MODEL":    carModel,
	})
	if len(docs) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(contextHeader)
	for _, d := range docs {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(d.Title))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(d.Content))
	}
	return b.String()
}
