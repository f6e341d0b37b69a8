package remote

import "fmt"

func buildActivityPrompt(text string, year, quarter int) string {
	const maxSnippet = 12000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return fmt.Sprintf(`You extract KPI activity line items from an institutional quarterly report for %d Q%d.
Return a strict JSON object with a single key "activities": an array of objects with keys:
name (string), kra (string, e.g. "KRA 3"), indicator (string, e.g. "KPI 1.2"),
value (string, the reported figure exactly as written),
denominator (number or null, for rate metrics reported as numerator over denominator),
target (number or null, only when the report states one),
confidence (number from 0 to 1).
Keep identifiers exactly as the report writes them. No markdown, no extra keys.

Report:
%s`, year, quarter, snippet)
}
