// Command hmigen turns one functional design document into HMI screen
// images without starting the server.
//
// Usage:
//
//	hmigen [-config hmi-forge.yaml] [-out dir] [-provider none] document.docx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hmi-forge/backend/internal/config"
	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "optional YAML configuration file")
	outDir := flag.String("out", "", "output directory (default <output_directory>/<document name>)")
	provider := flag.String("provider", "", "override llm.provider (anthropic, openai, none)")
	workers := flag.Int("workers", 0, "override processing.screen_workers")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <document>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *outDir, *provider, *workers, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "hmigen: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, outDir, provider string, workers int, docPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if provider != "" {
		cfg.LLM.Provider = strings.ToLower(provider)
	}
	if workers > 0 {
		cfg.Processing.ScreenWorkers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.NewLogger()

	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return err
	}
	prompts, err := llm.LoadPrompts(cfg.LLM.PromptDirectory)
	if err != nil {
		return err
	}

	if outDir == "" {
		name := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
		outDir = filepath.Join(cfg.Storage.OutputDirectory, name)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	runner := pipeline.New(client, prompts, pipeline.Options{
		Workers:          cfg.Processing.ScreenWorkers,
		MaxDocumentBytes: cfg.Processing.MaxDocumentBytes,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		RenderSeed:       cfg.Processing.RenderSeed,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := pipeline.SinkFunc(func(step pipeline.Step, message string) {
		logger.Info(message, "step", step)
	})
	res, err := runner.Run(ctx, docPath, sink)
	if err != nil {
		return err
	}

	if err := writeOutputs(outDir, res, logger); err != nil {
		return err
	}

	logger.Info("generation finished",
		"dir", outDir,
		"screens", len(res.Results),
		"failed", res.Summary.FailedScreens,
		"tokens", res.Usage.TotalTokens(),
		"duration", res.Duration)
	for _, d := range res.Degraded {
		logger.Warn("stage used fallback", "stage", d)
	}
	return nil
}

// writeOutputs lays out one run the same way the server persists a session.
func writeOutputs(dir string, res *pipeline.Result, logger *slog.Logger) error {
	var errs []error
	for _, sr := range res.Results {
		base := fmt.Sprintf("screen_%d", sr.Index+1)
		errs = append(errs, writeJSON(filepath.Join(dir, base+".json"), sr.Spec))
		if sr.Failed() {
			logger.Warn("screen has no image", "screen", sr.Screen.ScreenName, "error", sr.Err)
			continue
		}
		errs = append(errs, os.WriteFile(filepath.Join(dir, base+".png"), sr.PNG, 0644))
	}
	if res.Combined != nil {
		errs = append(errs, os.WriteFile(filepath.Join(dir, "combined.png"), res.Combined, 0644))
	}
	errs = append(errs,
		writeJSON(filepath.Join(dir, "screens.json"), res.Screens),
		writeJSON(filepath.Join(dir, "workflow.json"), res.Workflow),
		writeJSON(filepath.Join(dir, "summary.json"), res),
	)
	return errors.Join(errs...)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
