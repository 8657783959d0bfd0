package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// stubRewriter is a RemoteRewriter with scripted behavior.
type stubRewriter struct {
	reply string
	err   error
	calls int
}

func (s *stubRewriter) RewriteRemote(ctx context.Context, text string, styleHint models.Style) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func openAIOpts() models.TransformOptions {
	opts := models.DefaultTransformOptions()
	opts.AIMode = models.AIModeOpenAI
	opts.InsertEmoji = false
	opts.Seed = 1
	opts.Seeded = true
	return opts
}

func TestRewriteAll_LocalMode(t *testing.T) {
	doc := docWithParagraphs(5)
	opts := models.DefaultTransformOptions()
	h := NewHumorist(opts, 1)

	remote := &stubRewriter{reply: "should not be used"}
	results := NewRewriteService(remote, 2).RewriteAll(context.Background(), doc, opts, h)

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	if remote.calls != 0 {
		t.Errorf("local mode called the remote rewriter %d times", remote.calls)
	}
	for i, r := range results {
		if r.Fallback {
			t.Errorf("result %d flagged as fallback in local mode", i)
		}
		if r.Text == "" {
			t.Errorf("result %d is empty", i)
		}
	}
}

func TestRewriteAll_RemoteSuccess(t *testing.T) {
	doc := docWithParagraphs(4)
	opts := openAIOpts()
	h := NewHumorist(opts, 1)

	remote := &stubRewriter{reply: "rewritten text"}
	results := NewRewriteService(remote, 2).RewriteAll(context.Background(), doc, opts, h)

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, r := range results {
		if r.Fallback {
			t.Errorf("result %d flagged as fallback despite remote success", i)
		}
		if r.Text != "rewritten text" {
			t.Errorf("result %d = %q, want the remote reply", i, r.Text)
		}
	}
}

func TestRewriteAll_RemoteFailureFallsBack(t *testing.T) {
	doc := docWithParagraphs(6)
	opts := openAIOpts()
	h := NewHumorist(opts, 1)

	remote := &stubRewriter{err: serviceError("service down", nil)}
	results := NewRewriteService(remote, 3).RewriteAll(context.Background(), doc, opts, h)

	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for i, r := range results {
		if !r.Fallback {
			t.Errorf("result %d not flagged as fallback", i)
		}
		if r.Text == "" {
			t.Errorf("result %d fallback text is empty", i)
		}
	}
}

func TestRewriteAll_EmptyRemoteReplyFallsBack(t *testing.T) {
	doc := docWithParagraphs(2)
	opts := openAIOpts()
	h := NewHumorist(opts, 1)

	remote := &stubRewriter{reply: ""}
	results := NewRewriteService(remote, 1).RewriteAll(context.Background(), doc, opts, h)

	for i, r := range results {
		if !r.Fallback {
			t.Errorf("result %d: empty remote reply must trigger the fallback", i)
		}
	}
}

func TestRewriteAll_CanceledContextFallsBack(t *testing.T) {
	doc := docWithParagraphs(3)
	opts := openAIOpts()
	h := NewHumorist(opts, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	remote := &stubRewriter{reply: "too late"}
	results := NewRewriteService(remote, 2).RewriteAll(ctx, doc, opts, h)

	for i, r := range results {
		if !r.Fallback {
			t.Errorf("result %d should fall back once the run deadline fired", i)
		}
	}
}

func TestRewriteAll_SeededRemoteFallbackReproducible(t *testing.T) {
	doc := docWithParagraphs(4)
	opts := openAIOpts()

	run := func() []models.RewriteResult {
		h := NewHumorist(opts, time.Now().UnixNano())
		remote := &stubRewriter{err: errors.New("boom")}
		return NewRewriteService(remote, 4).RewriteAll(context.Background(), doc, opts, h)
	}

	a, b := run(), run()
	for i := range a {
		if a[i].Text != b[i].Text {
			t.Errorf("result %d differs across seeded runs:\n%q\n%q", i, a[i].Text, b[i].Text)
		}
	}
}

// --- OpenAIRewriter ---

func openAIAgainst(ts *httptest.Server) *OpenAIRewriter {
	return NewOpenAIRewriter(config.OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: ts.URL,
		Timeout: 2 * time.Second,
	})
}

func TestOpenAIRewriter_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "make me funny" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"now you are funny"}}]}`))
	}))
	defer ts.Close()

	out, err := openAIAgainst(ts).RewriteRemote(context.Background(), "make me funny", models.StyleSpicy)
	if err != nil {
		t.Fatalf("RewriteRemote() failed: %v", err)
	}
	if out != "now you are funny" {
		t.Errorf("RewriteRemote() = %q", out)
	}
}

func TestOpenAIRewriter_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := openAIAgainst(ts).RewriteRemote(context.Background(), "text", models.StyleMild)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if KindOf(err) != ErrKindService {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrKindService)
	}
}

func TestOpenAIRewriter_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	_, err := openAIAgainst(ts).RewriteRemote(context.Background(), "text", models.StyleMild)
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
	if KindOf(err) != ErrKindService {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrKindService)
	}
}

func TestOpenAIRewriter_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	_, err := openAIAgainst(ts).RewriteRemote(context.Background(), "text", models.StyleMild)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIRewriter_MissingKey(t *testing.T) {
	c := NewOpenAIRewriter(config.OpenAIConfig{Model: "gpt-4o-mini", BaseURL: "http://unused", Timeout: time.Second})
	_, err := c.RewriteRemote(context.Background(), "text", models.StyleMild)
	if err == nil {
		t.Fatal("expected error when the api key is missing")
	}
	if KindOf(err) != ErrKindService {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrKindService)
	}
}

func TestOpenAIRewriter_TruncatesLongInput(t *testing.T) {
	var gotLen int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotLen = len(req.Messages[1].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	long := make([]byte, maxRemoteChars*2)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := openAIAgainst(ts).RewriteRemote(context.Background(), string(long), models.StyleMild); err != nil {
		t.Fatalf("RewriteRemote() failed: %v", err)
	}
	if gotLen != maxRemoteChars {
		t.Errorf("sent %d chars, want %d", gotLen, maxRemoteChars)
	}
}
