// Package workflow composes the navigation workflow between HMI screens.
package workflow

import (
	"context"
	"log/slog"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
)

// Diagram sources.
const (
	SourceModel    = "model"
	SourceTemplate = "template"
)

const (
	// TemplateThreshold is the largest screen count composed without a model.
	TemplateThreshold = 3

	maxContextTerms   = 5
	maxContextScreens = 20
	systemPrompt      = "You design HMI navigation workflows and answer with JSON only."
)

// Options are the generation parameters for the workflow call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Composer builds a WorkflowDiagram for a list of screens.
type Composer struct {
	client  llm.Client
	prompts *llm.Prompts
	opts    Options
	logger  *slog.Logger
}

// NewComposer creates a Composer. A nil client always uses the template.
func NewComposer(client llm.Client, prompts *llm.Prompts, opts Options, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{client: client, prompts: prompts, opts: opts, logger: logger}
}

// Compose never fails. Small screen lists and any model failure take the
// template path; the result is always reconciled against list.
func (c *Composer) Compose(ctx context.Context, list []models.Screen, doc models.Document) models.WorkflowDiagram {
	if len(list) <= TemplateThreshold || c.client == nil {
		return Reconcile(Template(list, doc), list, doc)
	}

	diagram, err := c.fromModel(ctx, list, doc)
	if err != nil {
		c.logger.Warn("workflow model path failed, using template", "screens", len(list), "error", err)
		return Reconcile(Template(list, doc), list, doc)
	}
	return Reconcile(diagram, list, doc)
}

func (c *Composer) fromModel(ctx context.Context, list []models.Screen, doc models.Document) (models.WorkflowDiagram, error) {
	names := screenNames(list)
	if len(names) > maxContextScreens {
		names = names[:maxContextScreens]
	}

	prompt, err := c.prompts.Render(llm.PromptComposeWorkflow, map[string]any{
		"SystemType":   doc.Profile.SystemType,
		"Components":   head(doc.Profile.Components, maxContextTerms),
		"Operations":   head(doc.Profile.Operations, maxContextTerms),
		"ScreenNames":  names,
		"TotalScreens": len(list),
	})
	if err != nil {
		return models.WorkflowDiagram{}, err
	}

	resp, err := c.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return models.WorkflowDiagram{}, err
	}

	diagram, err := ParseDiagram(resp.Text)
	if err != nil {
		return models.WorkflowDiagram{}, err
	}
	diagram.Source = SourceModel
	return diagram, nil
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
