package ai

import (
	"fmt"
	"strings"

	"github.com/tanvirk/ledgerbot/internal/history"
)

// basePrompt is the planning contract sent to the model. The JSON shape
// it describes is exactly what decode.go expects back.
const basePrompt = `You are the planning layer of a personal finance assistant backed by Notion databases.

Turn the user's message into structured operations.
Output STRICT JSON only (no comments, no trailing commas, no extra text).
Output a single JSON object with these fields:
- "reply": string, a short conversational answer for the user
- "operations": array of operation objects (empty when the message needs no data access)

Each operation object must have these fields:
- "operation_type": one of "query", "create", "update", "delete", "analyze"
- "database": one of "expenses", "income", "categories", "accounts", "subscriptions", "payments", "loans"
- "filters": filter tree or null. A leaf is {"property": string, "operator": string, "value": any}; a branch is {"and": [...]} or {"or": [...]}
- "data": object of property name to value, for create and update
- "page_id": string, the target page UUID, for update and delete
- "analysis_type": one of "sum", "average", "count", for analyze
- "analysis_property": string, the numeric property to aggregate (defaults to "Amount")
- "reasoning": string, one sentence on why you chose this operation

Valid filter operators:
- text: equals, does_not_equal, contains, does_not_contain, starts_with, ends_with
- number: equals, does_not_equal, greater_than, less_than, greater_than_or_equal_to, less_than_or_equal_to
- date: equals, before, after, on_or_before, on_or_after
- checkbox: equals

Rules:
- Dates are ISO format "YYYY-MM-DD".
- Amounts are plain numbers, never strings.
- Relation values (category, account) are plain names; the engine resolves them to pages.
- Never invent a page_id. Omit it unless the conversation already surfaced one.
- For a delete or update without a known page_id, first emit a query so the user can pick the entry.

Return ONLY valid raw JSON.
Do NOT wrap the response in code fences.
Do NOT use ` + "```json" + ` or any Markdown.
Output must begin with "{" and end with "}".`

// buildPrompt assembles the full prompt: contract, known names, recent
// conversation, then the new message.
func buildPrompt(req *PlanRequest) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if len(req.Categories) > 0 {
		b.WriteString("\n\nKnown categories: ")
		b.WriteString(strings.Join(req.Categories, ", "))
	}
	if len(req.Accounts) > 0 {
		b.WriteString("\nKnown accounts: ")
		b.WriteString(strings.Join(req.Accounts, ", "))
	}
	b.WriteString(fmt.Sprintf("\nToday's date is %s.", req.Today.Format("2006-01-02")))

	if len(req.History) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, turn := range req.History {
			label := "User"
			if turn.Role == history.RoleAssistant {
				label = "Assistant"
			}
			b.WriteString(fmt.Sprintf("%s: %s\n", label, turn.Text))
		}
	}

	b.WriteString("\n\nUser message: ")
	b.WriteString(req.Message)
	return b.String()
}
