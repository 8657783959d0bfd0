package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"funnypdf/internal/models"
	"funnypdf/internal/repository"
	"funnypdf/internal/service"
)

// FunnyHandler handles the upload, transform and download endpoints.
type FunnyHandler struct {
	pipeline    *service.Pipeline
	workspace   *service.Workspace
	runRepo     *repository.RunRepository // nil when persistence is disabled
	maxUploadMB int64
}

// NewFunnyHandler creates a new FunnyHandler.
func NewFunnyHandler(pipeline *service.Pipeline, workspace *service.Workspace, runRepo *repository.RunRepository, maxUploadMB int64) *FunnyHandler {
	return &FunnyHandler{
		pipeline:    pipeline,
		workspace:   workspace,
		runRepo:     runRepo,
		maxUploadMB: maxUploadMB,
	}
}

// RegisterRoutes registers the public transformation routes. No auth:
// funnyifying a PDF is anonymous.
func (h *FunnyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/funnyify", h.Funnyify)
	mux.HandleFunc("GET /f/{sid}/{name}", h.ServeArtifact)
}

// funnyifyResponse is the success payload.
type funnyifyResponse struct {
	SessionID   string        `json:"session_id"`
	Style       models.Style  `json:"style"`
	Pages       int           `json:"pages"`
	Paragraphs  int           `json:"paragraphs"`
	Fallbacks   int           `json:"fallbacks"`
	OriginalURL string        `json:"original_url"`
	FunnyURL    string        `json:"funny_url"`
	DurationMS  int64         `json:"duration_ms"`
	AIMode      models.AIMode `json:"ai_mode"`
}

// Funnyify handles POST /api/v1/funnyify (multipart: pdf + option fields).
func (h *FunnyHandler) Funnyify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMB << 20); err != nil {
		Error(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		Error(w, http.StatusBadRequest, "pdf file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		Error(w, http.StatusBadRequest, "only .pdf files are allowed")
		return
	}

	opts, err := parseTransformOptions(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sid, dir, err := h.workspace.NewSession()
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to allocate session")
		return
	}

	inputPath := filepath.Join(dir, "original.pdf")
	outputPath := filepath.Join(dir, "funny.pdf")
	if err := saveUpload(file, inputPath); err != nil {
		Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	result, err := h.pipeline.Run(r.Context(), inputPath, outputPath, opts)
	h.record(r.Context(), header.Filename, opts, result, err)

	if err != nil {
		switch service.KindOf(err) {
		case service.ErrKindParse:
			Error(w, http.StatusBadRequest, err.Error())
		case service.ErrKindCompose:
			Error(w, http.StatusInternalServerError, "internal compose failure")
			log.Printf("compose defect: %v", err)
		default:
			Error(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	JSON(w, http.StatusOK, funnyifyResponse{
		SessionID:   sid,
		Style:       opts.Style,
		Pages:       result.Pages,
		Paragraphs:  result.Paragraphs,
		Fallbacks:   result.Fallbacks,
		OriginalURL: fmt.Sprintf("/f/%s/original.pdf", sid),
		FunnyURL:    fmt.Sprintf("/f/%s/funny.pdf", sid),
		DurationMS:  result.Duration.Milliseconds(),
		AIMode:      opts.AIMode,
	})
}

// ServeArtifact handles GET /f/{sid}/{name}. Only the two known
// artifact names are served, which also rules out path traversal.
func (h *FunnyHandler) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name != "original.pdf" && name != "funny.pdf" {
		Error(w, http.StatusNotFound, "not found")
		return
	}

	dir, err := h.workspace.SessionDir(r.PathValue("sid"))
	if err != nil {
		Error(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, filepath.Join(dir, name))
}

// record persists the run outcome when history is enabled.
func (h *FunnyHandler) record(ctx context.Context, filename string, opts models.TransformOptions, result *service.RunResult, runErr error) {
	if h.runRepo == nil {
		return
	}

	run := &models.Run{
		ID:            uuid.New(),
		InputFileName: filename,
		Style:         opts.Style,
		AIMode:        opts.AIMode,
		Status:        models.RunStatusDone,
	}
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorKind = string(service.KindOf(runErr))
	} else {
		run.Pages = result.Pages
		run.Paragraphs = result.Paragraphs
		run.Fallbacks = result.Fallbacks
		run.DurationMS = result.Duration.Milliseconds()
	}

	// History is best-effort; a db hiccup must not fail the request.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := h.runRepo.Create(recordCtx, run); err != nil {
		log.Printf("warning: recording run failed: %v", err)
	}
}

// parseTransformOptions maps the upload form fields onto
// TransformOptions, applying the documented defaults.
func parseTransformOptions(r *http.Request) (models.TransformOptions, error) {
	opts := models.DefaultTransformOptions()

	if v := strings.TrimSpace(r.FormValue("style")); v != "" {
		switch models.Style(v) {
		case models.StyleMild, models.StyleSpicy, models.StyleChaotic:
			opts.Style = models.Style(v)
		default:
			return opts, fmt.Errorf("invalid style: %s (allowed: mild, spicy, chaotic)", v)
		}
	}

	if v := strings.TrimSpace(r.FormValue("ai")); v != "" {
		switch models.AIMode(v) {
		case models.AIModeNone, models.AIModeOpenAI:
			opts.AIMode = models.AIMode(v)
		default:
			return opts, fmt.Errorf("invalid ai mode: %s (allowed: none, openai)", v)
		}
	}

	opts.InsertDecorations = parseBoolField(r, "cats", true)
	opts.InsertEmoji = parseBoolField(r, "emoji", true)

	if v := strings.TrimSpace(r.FormValue("cat_every")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid cat_every: %s", v)
		}
		opts.DecorationEvery = n
	}

	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid seed: %s", v)
		}
		opts.Seed = seed
		opts.Seeded = true
	}

	return opts, nil
}

// parseBoolField reads a checkbox-style field with a default for
// absent values.
func parseBoolField(r *http.Request, name string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(r.FormValue(name)))
	switch v {
	case "":
		return fallback
	case "false", "0", "off", "no":
		return false
	default:
		return true
	}
}

// saveUpload copies the multipart file to its session path.
func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("writing upload file: %w", err)
	}
	return nil
}
