package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"funnypdf/internal/models"
)

// DocumentExtractor parses a PDF file into the document model.
// Satisfied by *Extractor; tests substitute stubs.
type DocumentExtractor interface {
	Extract(path string) (*models.SourceDocument, error)
}

// DocumentComposer serializes the rewritten document. Satisfied by
// *Composer.
type DocumentComposer interface {
	Compose(ctx context.Context, doc *models.SourceDocument, results []models.RewriteResult, directives []models.DecorationDirective) ([]byte, error)
}

// Pipeline sequences extract, rewrite, decorate and compose for one
// document. Runs are independent: all state is run-local, so separate
// documents may be processed concurrently.
type Pipeline struct {
	extractor DocumentExtractor
	rewriter  *RewriteService
	decorator *DecoratorService
	composer  DocumentComposer
	deadline  time.Duration
}

// NewPipeline wires the pipeline stages.
func NewPipeline(extractor DocumentExtractor, rewriter *RewriteService, decorator *DecoratorService, composer DocumentComposer, deadline time.Duration) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		rewriter:  rewriter,
		decorator: decorator,
		composer:  composer,
		deadline:  deadline,
	}
}

// RunResult summarizes a completed run.
type RunResult struct {
	OutputPath string        `json:"output_path"`
	Pages      int           `json:"pages"`
	Paragraphs int           `json:"paragraphs"`
	Fallbacks  int           `json:"fallbacks"` // paragraphs served by the local fallback
	Duration   time.Duration `json:"duration"`
}

// Run executes the pipeline over inputPath and writes the transformed
// PDF to outputPath. Stage transitions are sequential and synchronous;
// any stage error terminates the run with no partial output. External
// rewrite-service failures never terminate a run: they are absorbed in
// the rewrite stage via the deterministic fallback.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string, opts models.TransformOptions) (*RunResult, error) {
	start := time.Now()

	if p.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	stage := models.StageExtracting
	doc, err := p.extractor.Extract(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	stage = models.StageRewriting
	humorist := NewHumorist(opts, start.UnixNano())
	results := p.rewriter.RewriteAll(ctx, doc, opts, humorist)

	stage = models.StageDecorating
	directives := p.decorator.Plan(doc, opts)

	stage = models.StageComposing
	out, err := p.composer.Compose(ctx, doc, results, directives)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return nil, fmt.Errorf("writing output artifact: %w", err)
	}

	fallbacks := 0
	for _, r := range results {
		if r.Fallback {
			fallbacks++
		}
	}

	return &RunResult{
		OutputPath: outputPath,
		Pages:      len(doc.Pages),
		Paragraphs: len(results),
		Fallbacks:  fallbacks,
		Duration:   time.Since(start),
	}, nil
}
