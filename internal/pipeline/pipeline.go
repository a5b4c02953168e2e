// Package pipeline runs the document-to-screens flow end to end: read,
// classify, segment, identify screens, compose the workflow, then
// generate and render every screen on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hmi-forge/backend/internal/keywords"
	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/reader"
	"github.com/hmi-forge/backend/internal/render"
	"github.com/hmi-forge/backend/internal/screens"
	"github.com/hmi-forge/backend/internal/segment"
	"github.com/hmi-forge/backend/internal/specgen"
	"github.com/hmi-forge/backend/internal/workflow"
)

// DefaultWorkers bounds concurrent per-screen work when Options.Workers
// is not set.
const DefaultWorkers = 4

// Options configure a Runner.
type Options struct {
	Workers          int
	MaxDocumentBytes int64
	Model            string
	Temperature      float64
	MaxTokens        int
	// Values feeds the cosmetic readings drawn inside widgets. Nil uses
	// a source seeded with RenderSeed.
	Values     render.ValueSource
	RenderSeed int64
	// Clock sets the time shown by date/time widgets. Nil uses time.Now.
	Clock func() time.Time
}

// ScreenResult is the outcome for one screen. Spec is always set; PNG is
// nil when rendering failed and Err says why.
type ScreenResult struct {
	Index     int                        `json:"index"`
	Screen    models.Screen              `json:"screen"`
	Spec      models.ScreenSpecification `json:"spec"`
	PNG       []byte                     `json:"-"`
	DrawCalls []render.DrawCall          `json:"drawCalls,omitempty"`
	RenderMs  int64                      `json:"renderMs"`
	Err       error                      `json:"-"`
}

// Failed reports whether the screen has no image.
func (r ScreenResult) Failed() bool {
	return r.Err != nil || r.PNG == nil
}

// Result is everything one run produced.
type Result struct {
	Document models.Document        `json:"document"`
	Sections int                    `json:"sections"`
	Screens  models.ScreenList      `json:"screens"`
	Workflow models.WorkflowDiagram `json:"workflow"`
	Results  []ScreenResult         `json:"results"`
	Combined []byte                 `json:"-"`
	Summary  models.BatchSummary    `json:"summary"`
	Degraded []string               `json:"degraded,omitempty"`
	Usage    llm.Usage              `json:"usage"`
	Duration time.Duration          `json:"duration"`
}

// Runner executes the pipeline. A Runner is safe for concurrent use;
// each Run gets its own usage meter.
type Runner struct {
	client  llm.Client
	prompts *llm.Prompts
	reader  *reader.Registry
	opts    Options
	logger  *slog.Logger
}

// New creates a Runner. A nil or disabled client runs every stage on its
// deterministic path.
func New(client llm.Client, prompts *llm.Prompts, opts Options, logger *slog.Logger) *Runner {
	if !llm.Enabled(client) {
		client = nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.MustLoadPrompts()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = reader.DefaultMaxBytes
	}
	return &Runner{
		client:  client,
		prompts: prompts,
		reader:  reader.NewRegistry(opts.MaxDocumentBytes, logger),
		opts:    opts,
		logger:  logger,
	}
}

// stages holds the per-run stage objects wired to one usage meter.
type stages struct {
	meter      *llm.Metered
	identifier *screens.Identifier
	composer   *workflow.Composer
	generator  *specgen.Generator
	renderer   *render.Renderer
}

func (r *Runner) newStages() stages {
	var (
		meter  *llm.Metered
		client llm.Client
	)
	if r.client != nil {
		meter = llm.NewMetered(r.client)
		client = meter
	}
	values := r.opts.Values
	if values == nil {
		values = render.NewRandomValues(r.opts.RenderSeed)
	}
	renderer := render.NewRenderer(values, r.logger)
	if r.opts.Clock != nil {
		renderer.SetClock(r.opts.Clock)
	}
	return stages{
		meter: meter,
		identifier: screens.NewIdentifier(client, r.prompts, screens.Options{
			Model: r.opts.Model, Temperature: r.opts.Temperature, MaxTokens: r.opts.MaxTokens,
		}, r.logger),
		composer: workflow.NewComposer(client, r.prompts, workflow.Options{
			Model: r.opts.Model, Temperature: r.opts.Temperature, MaxTokens: r.opts.MaxTokens,
		}, r.logger),
		generator: specgen.NewGenerator(client, r.prompts, specgen.Options{
			Model: r.opts.Model, Temperature: r.opts.Temperature, MaxTokens: r.opts.MaxTokens,
		}, r.logger),
		renderer: renderer,
	}
}

// Run processes the document at docPath. Stage failures fall back to
// the deterministic paths and are listed in Result.Degraded. Run only
// fails when ctx is cancelled or the combined image cannot be encoded.
// sink may be nil.
func (r *Runner) Run(ctx context.Context, docPath string, sink ProgressSink) (*Result, error) {
	start := time.Now()
	if sink == nil {
		sink = NopSink{}
	}
	st := r.newStages()
	res := &Result{}
	var degraded degradedList

	// Document
	doc := r.reader.Read(ctx, docPath)
	doc.Profile = keywords.Extract(doc.Text)
	if doc.Degraded {
		degraded.add("document_reader", doc.DegradedReason)
	}
	res.Document = doc
	notify(sink, StepDocumentRead, 5, fmt.Sprintf("Read %s (%s), system type %s", doc.Name, doc.Format, doc.Profile.SystemType))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections := segment.Segment(doc.Text)
	res.Sections = len(sections)
	notify(sink, StepSectionsSegmented, 10, fmt.Sprintf("Found %d sections", len(sections)))

	// Screens
	var list models.ScreenList
	err := llm.ErrDisabled
	if r.client != nil {
		list, err = st.identifier.Identify(ctx, sections, doc)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if r.client != nil && !errors.Is(err, llm.ErrDisabled) {
			r.logger.Warn("screen identification fell back to headings", "error", err)
			degraded.add("screen_identifier", err.Error())
		}
		list = screens.FromTemplate(sections, doc.Profile)
	}
	res.Screens = list
	notify(sink, StepScreensIdentified, 25, fmt.Sprintf("Identified %d screens", list.TotalScreens))

	// Workflow
	diagram := st.composer.Compose(ctx, list.ScreenList, doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if diagram.Source == workflow.SourceTemplate && len(list.ScreenList) > workflow.TemplateThreshold && r.client != nil {
		degraded.add("workflow_composer", "model workflow unavailable, template used")
	}
	res.Workflow = diagram
	notify(sink, StepWorkflowBuilt, 35, fmt.Sprintf("Workflow has %d transitions", len(diagram.NavigationFlow.ScreenTransitions)))

	// Per-screen specification and rendering
	results, err := r.runScreens(ctx, st, list.ScreenList, doc, sink, &degraded)
	if err != nil {
		return nil, err
	}
	res.Results = results

	// Combined layout
	entries := make([]render.Entry, len(results))
	for i, sr := range results {
		entries[i] = render.Entry{Name: sr.Screen.ScreenName, Err: sr.Err}
		if !sr.Failed() {
			spec := sr.Spec
			entries[i].Spec = &spec
		}
	}
	img, err := st.renderer.RenderCombined(entries, diagram.NavigationFlow.ScreenTransitions, diagram.SystemOverview)
	if err != nil {
		r.logger.Error("combined layout failed", "error", err)
		degraded.add("combined_layout", err.Error())
	} else if res.Combined, err = render.EncodePNG(img); err != nil {
		return nil, fmt.Errorf("encoding combined layout: %w", err)
	}
	notify(sink, StepCombinedLayout, 95, "Rendered combined layout")

	res.Summary = Summarize(results)
	res.Degraded = degraded.list()
	if st.meter != nil {
		res.Usage = st.meter.Usage()
	}
	res.Duration = time.Since(start)
	notify(sink, StepComplete, 100, fmt.Sprintf("%d of %d screens rendered", res.Summary.SuccessfulScreens, len(results)))

	r.logger.Info("pipeline complete",
		"document", doc.Name,
		"system_type", doc.Profile.SystemType,
		"screens", len(results),
		"failed", res.Summary.FailedScreens,
		"degraded", len(res.Degraded),
		"llm_calls", res.Usage.Calls,
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// runScreens fans the per-screen work out over the worker pool. Results
// are stored by index so input order is preserved regardless of which
// worker finishes first.
func (r *Runner) runScreens(ctx context.Context, st stages, list []models.Screen, doc models.Document, sink ProgressSink, degraded *degradedList) ([]ScreenResult, error) {
	results := make([]ScreenResult, len(list))
	var (
		mu   sync.Mutex
		done int
	)
	total := len(list)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, screen := range list {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sr := r.runScreen(gctx, st, i, screen, doc, sink)
			results[i] = sr

			mu.Lock()
			done++
			n := done
			mu.Unlock()

			if sr.Spec.Source == specgen.SourceFallback && r.client != nil {
				degraded.add("screen_spec:"+screen.ScreenName, "rule-based layout used")
			}
			msg := fmt.Sprintf("Rendered %s (%d/%d)", screen.ScreenName, n, total)
			if sr.Err != nil {
				msg = fmt.Sprintf("Failed to render %s (%d/%d): %v", screen.ScreenName, n, total, sr.Err)
			}
			notify(sink, StepScreenImage, 35+55*float64(n)/float64(total), msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runScreen(ctx context.Context, st stages, i int, screen models.Screen, doc models.Document, sink ProgressSink) (sr ScreenResult) {
	sr = ScreenResult{Index: i, Screen: screen}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("screen worker panicked", "screen", screen.ScreenName, "panic", p)
			sr.PNG = nil
			sr.Err = fmt.Errorf("screen %q: %v", screen.ScreenName, p)
		}
	}()

	sr.Spec = st.generator.Generate(ctx, screen, doc)
	sink.Notify(StepScreenSpec, fmt.Sprintf("Generated layout for %s (%s, %d elements)", screen.ScreenName, sr.Spec.Source, len(sr.Spec.Elements)))

	start := time.Now()
	img, calls, err := st.renderer.RenderTraced(sr.Spec)
	if err == nil {
		sr.PNG, err = render.EncodePNG(img)
	}
	sr.RenderMs = time.Since(start).Milliseconds()
	sr.DrawCalls = calls
	if err != nil {
		sr.Err = err
		sr.PNG = nil
		r.logger.Warn("screen render failed", "screen", screen.ScreenName, "error", err)
	}
	return sr
}

// Summarize counts successful and failed screens.
func Summarize(results []ScreenResult) models.BatchSummary {
	var s models.BatchSummary
	for _, r := range results {
		if r.Failed() {
			s.FailedScreens++
			s.Failed = append(s.Failed, r.Screen.ScreenName)
			continue
		}
		s.SuccessfulScreens++
	}
	return s
}

type degradedList struct {
	mu    sync.Mutex
	items []string
}

func (d *degradedList) add(stage, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		d.items = append(d.items, stage)
		return
	}
	d.items = append(d.items, stage+": "+reason)
}

func (d *degradedList) list() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.items...)
}
