package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// stubExtractor returns a fixed document or error.
type stubExtractor struct {
	doc *models.SourceDocument
	err error
}

func (s *stubExtractor) Extract(path string) (*models.SourceDocument, error) {
	return s.doc, s.err
}

// stubComposer records its inputs and returns fixed bytes or an error.
type stubComposer struct {
	out        []byte
	err        error
	results    []models.RewriteResult
	directives []models.DecorationDirective
}

func (s *stubComposer) Compose(ctx context.Context, doc *models.SourceDocument, results []models.RewriteResult, directives []models.DecorationDirective) ([]byte, error) {
	s.results = results
	s.directives = directives
	return s.out, s.err
}

func newTestPipeline(ex DocumentExtractor, co DocumentComposer) *Pipeline {
	return NewPipeline(ex, NewRewriteService(nil, 1), NewDecoratorService(), co, time.Minute)
}

func TestPipelineRun_Success(t *testing.T) {
	doc := docWithParagraphs(5)
	composer := &stubComposer{out: []byte("%PDF-stub")}
	p := newTestPipeline(&stubExtractor{doc: doc}, composer)

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	result, err := p.Run(context.Background(), "in.pdf", outPath, models.DefaultTransformOptions())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Pages != len(doc.Pages) {
		t.Errorf("Pages = %d, want %d", result.Pages, len(doc.Pages))
	}
	if result.Paragraphs != 5 {
		t.Errorf("Paragraphs = %d, want 5", result.Paragraphs)
	}
	if result.Fallbacks != 0 {
		t.Errorf("Fallbacks = %d, want 0", result.Fallbacks)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output artifact missing: %v", err)
	}
	if string(data) != "%PDF-stub" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestPipelineRun_OneResultPerParagraph(t *testing.T) {
	doc := docWithParagraphs(7)
	composer := &stubComposer{out: []byte("out")}
	p := newTestPipeline(&stubExtractor{doc: doc}, composer)

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	if _, err := p.Run(context.Background(), "in.pdf", outPath, models.DefaultTransformOptions()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(composer.results) != doc.ParagraphCount() {
		t.Errorf("composer received %d results for %d paragraphs", len(composer.results), doc.ParagraphCount())
	}
}

func TestPipelineRun_ExtractErrorStopsRun(t *testing.T) {
	p := newTestPipeline(
		&stubExtractor{err: parseError("bad file", nil)},
		&stubComposer{out: []byte("out")},
	)

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	_, err := p.Run(context.Background(), "in.pdf", outPath, models.DefaultTransformOptions())
	if err == nil {
		t.Fatal("expected extract error to terminate the run")
	}
	if KindOf(err) != ErrKindParse {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrKindParse)
	}
	if _, statErr := os.Stat(outPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("failed run must not leave an output artifact")
	}
}

func TestPipelineRun_ComposeErrorStopsRun(t *testing.T) {
	p := newTestPipeline(
		&stubExtractor{doc: docWithParagraphs(2)},
		&stubComposer{err: composeError("page count mismatch", nil)},
	)

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	_, err := p.Run(context.Background(), "in.pdf", outPath, models.DefaultTransformOptions())
	if err == nil {
		t.Fatal("expected compose error to terminate the run")
	}
	if KindOf(err) != ErrKindCompose {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrKindCompose)
	}
	if _, statErr := os.Stat(outPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("failed run must not leave an output artifact")
	}
}

func TestPipelineRun_RemoteFailuresDoNotFailRun(t *testing.T) {
	doc := docWithParagraphs(4)
	composer := &stubComposer{out: []byte("out")}
	remote := &stubRewriter{err: errors.New("service down")}
	p := NewPipeline(&stubExtractor{doc: doc}, NewRewriteService(remote, 2), NewDecoratorService(), composer, time.Minute)

	opts := models.DefaultTransformOptions()
	opts.AIMode = models.AIModeOpenAI

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	result, err := p.Run(context.Background(), "in.pdf", outPath, opts)
	if err != nil {
		t.Fatalf("Run() failed despite fallback: %v", err)
	}
	if result.Fallbacks != 4 {
		t.Errorf("Fallbacks = %d, want 4", result.Fallbacks)
	}
	if result.Paragraphs != 4 {
		t.Errorf("Paragraphs = %d, want 4", result.Paragraphs)
	}
}

func TestPipelineRun_EndToEndChaotic(t *testing.T) {
	pageTexts := [][]string{
		{
			"Alpha one. Alpha two.",
			"Beta one. Beta two.",
			"Gamma one. Gamma two.",
			"Delta one. Delta two.",
			"Epsilon one. Epsilon two.",
		},
		{
			"Zeta one. Zeta two.",
			"Eta one. Eta two.",
			"Theta one. Theta two.",
			"Iota one. Iota two.",
			"Kappa one. Kappa two.",
		},
	}
	inputPath := writeFixturePDF(t, pageTexts)

	cfg := config.EngineConfig{MaxPages: 200, LineGapFactor: 1.5, DecorWidthFrac: 0.45}
	cats := &stubCatFetcher{}
	p := NewPipeline(
		NewExtractor(cfg),
		NewRewriteService(nil, 2),
		NewDecoratorService(),
		NewComposer(cfg, cats),
		time.Minute,
	)

	opts := models.TransformOptions{
		Style:             models.StyleChaotic,
		InsertDecorations: true,
		InsertEmoji:       false,
		AIMode:            models.AIModeNone,
		DecorationEvery:   4,
		Seed:              42,
		Seeded:            true,
	}

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	result, err := p.Run(context.Background(), inputPath, outPath, opts)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Pages != 2 {
		t.Errorf("Pages = %d, want 2", result.Pages)
	}
	if result.Paragraphs != 10 {
		t.Errorf("Paragraphs = %d, want 10", result.Paragraphs)
	}
	if result.Fallbacks != 0 {
		t.Errorf("Fallbacks = %d, want 0", result.Fallbacks)
	}
	// Directives after paragraphs 4 and 8, each fetching one image.
	if cats.calls != 2 {
		t.Errorf("fetched %d decoration images, want 2", cats.calls)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output artifact missing: %v", err)
	}
}

func TestPipelineRun_DirectivesReachComposer(t *testing.T) {
	doc := docWithParagraphs(8)
	composer := &stubComposer{out: []byte("out")}
	p := newTestPipeline(&stubExtractor{doc: doc}, composer)

	opts := models.DefaultTransformOptions()
	opts.DecorationEvery = 4

	outPath := filepath.Join(t.TempDir(), "funny.pdf")
	if _, err := p.Run(context.Background(), "in.pdf", outPath, opts); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(composer.directives) != 2 {
		t.Errorf("composer received %d directives, want 2", len(composer.directives))
	}
}
