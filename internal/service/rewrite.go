package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// RemoteRewriter is the injectable external-rewrite capability. The
// rewrite service depends on this interface, not on a concrete network
// client, so tests can substitute a deterministic stub.
type RemoteRewriter interface {
	// RewriteRemote sends paragraph text plus a style hint and returns
	// the rewritten text. Errors are ErrKindService.
	RewriteRemote(ctx context.Context, text string, styleHint models.Style) (string, error)
}

// RewriteService turns source paragraphs into RewriteResults. Local
// styles run in-line; external rewrites are dispatched through a
// bounded worker pool so concurrent service calls stay capped.
type RewriteService struct {
	remote  RemoteRewriter
	workers int
}

// NewRewriteService creates a RewriteService. remote may be nil when
// no external mode is configured.
func NewRewriteService(remote RemoteRewriter, workers int) *RewriteService {
	if workers < 1 {
		workers = 1
	}
	return &RewriteService{remote: remote, workers: workers}
}

// RewriteAll produces exactly one RewriteResult per text paragraph of
// doc, in document order. External-service failures never propagate:
// each failed paragraph falls back to the deterministic local rewrite
// and is flagged.
func (s *RewriteService) RewriteAll(ctx context.Context, doc *models.SourceDocument, opts models.TransformOptions, h *Humorist) []models.RewriteResult {
	paragraphs := collectParagraphs(doc)
	results := make([]models.RewriteResult, len(paragraphs))

	if opts.AIMode != models.AIModeOpenAI || s.remote == nil {
		for i, p := range paragraphs {
			results[i] = models.RewriteResult{Text: h.RewriteParagraph(p, i)}
		}
		return results
	}

	// Per-paragraph rewrites have no cross-paragraph dependency, so
	// dispatch them concurrently, bounded by the worker limit.
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, p := range paragraphs {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = s.rewriteOne(ctx, text, idx, opts, h)
		}(i, p)
	}
	wg.Wait()
	return results
}

// rewriteOne performs a single external rewrite with local fallback.
func (s *RewriteService) rewriteOne(ctx context.Context, text string, idx int, opts models.TransformOptions, h *Humorist) models.RewriteResult {
	// The run deadline may already have fired; skip the network call
	// and go straight to the fallback.
	if ctx.Err() != nil {
		return models.RewriteResult{Text: h.FallbackRewrite(text, idx), Fallback: true}
	}

	rewritten, err := s.remote.RewriteRemote(ctx, text, opts.Style)
	if err != nil || rewritten == "" {
		return models.RewriteResult{Text: h.FallbackRewrite(text, idx), Fallback: true}
	}

	out := rewritten
	if opts.InsertEmoji {
		out = sprinkleEmojis(out, h.paraRand(idx), styleIntensity[opts.Style])
	}
	return models.RewriteResult{Text: out}
}

// collectParagraphs flattens doc into document-ordered paragraph texts.
func collectParagraphs(doc *models.SourceDocument) []string {
	var out []string
	for _, page := range doc.Pages {
		for _, b := range page.Blocks {
			if b.Kind == models.BlockText {
				out = append(out, b.Paragraph.Text)
			}
		}
	}
	return out
}

// --- OpenAI client ---

// maxRemoteChars caps how much of a paragraph is sent to the service.
const maxRemoteChars = 1200

// OpenAIRewriter implements RemoteRewriter against the OpenAI
// chat-completions API. Credentials come from configuration; the engine
// itself never reads the environment.
type OpenAIRewriter struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewOpenAIRewriter creates an OpenAIRewriter from configuration.
func NewOpenAIRewriter(cfg config.OpenAIConfig) *OpenAIRewriter {
	return &OpenAIRewriter{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RewriteRemote sends one paragraph for rewriting with a bounded
// per-call timeout.
func (c *OpenAIRewriter) RewriteRemote(ctx context.Context, text string, styleHint models.Style) (string, error) {
	if c.apiKey == "" {
		return "", serviceError("openai api key not configured", nil)
	}

	seg := text
	if len(seg) > maxRemoteChars {
		seg = seg[:maxRemoteChars]
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "Rewrite user text with playful, meme-like humor; keep meaning; " +
					"avoid slurs/insults; keep it PG-13; add mild sarcasm; " +
					fmt.Sprintf("style=%s.", styleHint),
			},
			{Role: "user", Content: seg},
		},
		Temperature: 0.9,
		MaxTokens:   300,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", serviceError("encoding request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", serviceError("building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", serviceError("calling rewrite service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", serviceError(fmt.Sprintf("rewrite service returned %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", serviceError("reading response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", serviceError("decoding response", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", serviceError("empty completion", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}
