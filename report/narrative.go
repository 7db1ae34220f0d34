package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/croscope/croscope/llm"
	"github.com/croscope/croscope/models"
)

const narrativeTemplate = `You are a senior conversion rate optimization consultant writing for %s.

Below is a table of landing page audits. Each row is one page; columns are the
audit fields. Rows whose "error" column is filled could not be analyzed.

%s

Write a concise prose report that:
1. Summarizes the strongest and weakest pages and why.
2. Identifies patterns across the set (shared weaknesses, shared strengths).
3. Gives the top 3 prioritized recommendations with expected impact.

Write plain prose with short section headings. Do not reproduce the table.`

// ModelClient is the completion surface the narrative generator needs.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Narrator turns a finished batch into a prose report via the model.
type Narrator struct {
	client ModelClient
	model  string
}

// NewNarrator builds a Narrator bound to the given model.
func NewNarrator(client ModelClient, model string) *Narrator {
	return &Narrator{client: client, model: model}
}

// Narrate renders the records as markdown and asks the model for a prose
// report addressed to subject. The reply is free text, not JSON.
func (n *Narrator) Narrate(ctx context.Context, records []models.AnalysisRecord, subject string) (string, error) {
	if len(records) == 0 {
		return "", &models.AnalysisError{
			Code:    models.ErrCodeInvalidInput,
			Message: "no records to narrate",
		}
	}

	table := BuildTable(records).Markdown()
	prompt := fmt.Sprintf(narrativeTemplate, subject, table)

	reply, err := n.client.Complete(ctx, llm.CompletionRequest{
		Model:  n.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
