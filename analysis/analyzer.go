package analysis

import (
	"context"
	"log/slog"

	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/content"
	"github.com/croscope/croscope/llm"
	"github.com/croscope/croscope/models"
)

// ModelClient is the boundary to the external multimodal model.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Analyzer runs the per-page analysis pipeline: image normalization, prompt
// construction, the model call, reply recovery and record normalization.
// It never returns an error — every failure becomes a failure record so a
// bad page can't abort its siblings.
type Analyzer struct {
	client       ModelClient
	builder      *PromptBuilder
	maxImageDim  int
	snippetLimit int
}

// NewAnalyzer wires the pipeline with its configuration.
func NewAnalyzer(client ModelClient, cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{
		client:       client,
		builder:      NewPromptBuilder(cfg.TextLimit),
		maxImageDim:  cfg.MaxImageDim,
		snippetLimit: cfg.SnippetLimit,
	}
}

// Analyze turns one captured page into its AnalysisRecord. promptOverride,
// when non-empty, replaces the default template verbatim.
func (a *Analyzer) Analyze(ctx context.Context, page *models.CapturedPage, req models.PageRequest, promptOverride string) models.AnalysisRecord {
	// Decode failures are capture-class: the page never yielded usable
	// material.
	imgBytes, imgMIME, err := NormalizeImage(page.ImageBytes, a.maxImageDim)
	if err != nil {
		slog.Warn("screenshot normalization failed",
			"platform", req.DisplayName, "url", req.URL, "error", err)
		return models.FailureRecord(req, "capture", err)
	}

	prompt := a.builder.Build(req.DisplayName, req.URL, page.Text, promptOverride)
	slog.Debug("analysis prompt built",
		"platform", req.DisplayName,
		"prompt_tokens_est", content.EstimateTokens(prompt),
		"image_bytes", len(imgBytes),
	)

	reply, err := a.client.Complete(ctx, llm.CompletionRequest{
		Prompt:    prompt,
		ImageData: imgBytes,
		ImageMIME: imgMIME,
		JSONOnly:  true,
	})
	if models.IsCode(err, models.ErrCodeLLMEmptyReply) {
		// Some providers return nothing for oversized or rejected images.
		// Retry once text-only before giving up on the page.
		slog.Warn("empty model reply, retrying without image",
			"platform", req.DisplayName, "url", req.URL)
		reply, err = a.client.Complete(ctx, llm.CompletionRequest{
			Prompt:   prompt,
			JSONOnly: true,
		})
	}
	if err != nil {
		slog.Warn("model call failed",
			"platform", req.DisplayName, "url", req.URL, "error", err)
		return models.FailureRecord(req, "model", err)
	}

	obj, err := ExtractObject(reply, a.snippetLimit)
	if err != nil {
		slog.Warn("reply recovery failed",
			"platform", req.DisplayName, "url", req.URL, "error", err)
		return models.FailureRecord(req, "parse", err)
	}

	return NormalizeRecord(obj, req)
}
