package report

import (
	"context"
	"strings"
	"testing"

	"github.com/croscope/croscope/llm"
	"github.com/croscope/croscope/models"
)

type fakeModel struct {
	reply string
	err   error
	last  llm.CompletionRequest
}

func (f *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

func TestNarrate(t *testing.T) {
	model := &fakeModel{reply: "  Acme leads on trust elements.\n"}
	n := NewNarrator(model, "gpt-4o")

	records := []models.AnalysisRecord{
		{"Platform": "acme", "URL": "https://acme.com", "Offer": "CRM"},
		{"Platform": "globex", "URL": "https://globex.com", "error": "capture: timeout"},
	}

	out, err := n.Narrate(context.Background(), records, "Acme Inc")
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if out != "Acme leads on trust elements." {
		t.Errorf("narrative = %q, want trimmed reply", out)
	}

	if model.last.JSONOnly {
		t.Error("narrative call must not request JSON output")
	}
	if model.last.Model != "gpt-4o" {
		t.Errorf("model = %q", model.last.Model)
	}
	if !strings.Contains(model.last.Prompt, "Acme Inc") {
		t.Error("prompt should carry the subject")
	}
	if !strings.Contains(model.last.Prompt, "| acme |") {
		t.Errorf("prompt should carry the records as a markdown table:\n%s", model.last.Prompt)
	}
}

func TestNarrate_NoRecords(t *testing.T) {
	n := NewNarrator(&fakeModel{}, "m")

	_, err := n.Narrate(context.Background(), nil, "x")
	if err == nil {
		t.Fatal("expected error for an empty record set")
	}
	if !models.IsCode(err, models.ErrCodeInvalidInput) {
		t.Errorf("error code = %s", models.ErrorCode(err))
	}
}

func TestNarrate_ModelErrorPropagates(t *testing.T) {
	model := &fakeModel{err: models.NewAnalysisError(models.ErrCodeLLMRateLimited, "slow down", nil)}
	n := NewNarrator(model, "m")

	_, err := n.Narrate(context.Background(), []models.AnalysisRecord{{"Platform": "a", "URL": "u"}}, "x")
	if !models.IsCode(err, models.ErrCodeLLMRateLimited) {
		t.Errorf("error code = %s, want the model error unchanged", models.ErrorCode(err))
	}
}
