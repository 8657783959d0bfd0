package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// DecoratorService plans where decorative content goes. Planning is
// pure; actual image bytes are fetched later, at compose time.
type DecoratorService struct{}

// NewDecoratorService creates a new DecoratorService.
func NewDecoratorService() *DecoratorService {
	return &DecoratorService{}
}

// Plan walks the document with a single running paragraph counter (not
// reset per page) and emits a directive at every positive multiple of
// opts.DecorationEvery. DecorationEvery <= 0 means never. Pages without
// paragraphs never receive decorations, since directives anchor to
// paragraphs.
func (s *DecoratorService) Plan(doc *models.SourceDocument, opts models.TransformOptions) []models.DecorationDirective {
	kind, ok := directiveKind(opts)
	if !ok || opts.DecorationEvery <= 0 {
		return nil
	}

	var directives []models.DecorationDirective
	counter := 0
	for _, page := range doc.Pages {
		for _, b := range page.Blocks {
			if b.Kind != models.BlockText {
				continue
			}
			counter++
			if counter%opts.DecorationEvery == 0 {
				directives = append(directives, models.DecorationDirective{
					AfterParagraphIndex: counter,
					Kind:                kind,
				})
			}
		}
	}
	return directives
}

// directiveKind maps the option flags to a decoration kind. The second
// return is false when neither flag is set.
func directiveKind(opts models.TransformOptions) (models.DecorationKind, bool) {
	switch {
	case opts.InsertDecorations && opts.InsertEmoji:
		return models.DecorationBoth, true
	case opts.InsertDecorations:
		return models.DecorationImage, true
	case opts.InsertEmoji:
		return models.DecorationEmoji, true
	default:
		return "", false
	}
}

// --- Cat images ---

// CatFetcher supplies decoration image bytes. Implementations must
// never fail the run: on any trouble they return a placeholder.
type CatFetcher interface {
	// Fetch returns image bytes plus the image type name understood by
	// the composer ("JPG", "PNG" or "GIF").
	Fetch(ctx context.Context) ([]byte, string)
}

// HTTPCatFetcher downloads a random cat picture from a cat-image
// service, falling back to a generated placeholder on any error.
type HTTPCatFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPCatFetcher creates an HTTPCatFetcher from configuration.
func NewHTTPCatFetcher(cfg config.EngineConfig) *HTTPCatFetcher {
	timeout := cfg.CatTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCatFetcher{
		url:    cfg.CatURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads one cat image.
func (f *HTTPCatFetcher) Fetch(ctx context.Context) ([]byte, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return placeholderJPEG(), "JPG"
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return placeholderJPEG(), "JPG"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return placeholderJPEG(), "JPG"
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil || len(data) == 0 {
		return placeholderJPEG(), "JPG"
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return data, "JPG"
	case "image/png":
		return data, "PNG"
	case "image/gif":
		return data, "GIF"
	default:
		return placeholderJPEG(), "JPG"
	}
}

// placeholderJPEG builds a plain light-gray square for when the cat
// service is unreachable.
func placeholderJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	gray := color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, gray)
		}
	}
	var buf bytes.Buffer
	// Encoding a flat RGBA image cannot fail.
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	return buf.Bytes()
}
