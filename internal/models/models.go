package models

import (
	"time"

	"github.com/google/uuid"
)

// -------------------------------------------------------
// Enums
// -------------------------------------------------------

// UserRole defines the type for user roles.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// Style selects the humor intensity for a transformation run.
type Style string

const (
	StyleMild    Style = "mild"
	StyleSpicy   Style = "spicy"
	StyleChaotic Style = "chaotic"
)

// AIMode selects whether paragraph rewriting is delegated to an
// external language-model service.
type AIMode string

const (
	AIModeNone   AIMode = "none"
	AIModeOpenAI AIMode = "openai"
)

// DecorationKind describes what gets inserted after a paragraph.
type DecorationKind string

const (
	DecorationImage DecorationKind = "image"
	DecorationEmoji DecorationKind = "emoji"
	DecorationBoth  DecorationKind = "both"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusDone   RunStatus = "done"
	RunStatusFailed RunStatus = "failed"
)

// Stage identifies the pipeline state machine position.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageRewriting  Stage = "rewriting"
	StageDecorating Stage = "decorating"
	StageComposing  Stage = "composing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// BlockKind tags a ContentBlock variant.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockElement BlockKind = "element"
)

// -------------------------------------------------------
// Document Model
// -------------------------------------------------------

// BBox is a bounding box in PDF user space (origin bottom-left, points).
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// TextParagraph is a group of consecutive text lines on one page.
type TextParagraph struct {
	Text string `json:"text"`
	BBox BBox   `json:"bbox"`
}

// NonTextElement is an opaque non-text page element (image XObject,
// vector content). The payload is passed through without inspection;
// Filter, ColorSpace and BitsPerComponent describe the stream so the
// composer can decide whether and how the payload is re-embeddable.
type NonTextElement struct {
	Payload          []byte `json:"-"`
	Filter           string `json:"filter,omitempty"`
	ColorSpace       string `json:"color_space,omitempty"`
	BitsPerComponent int    `json:"bits_per_component,omitempty"`
	ObjNr            int    `json:"obj_nr,omitempty"`
	BBox             BBox   `json:"bbox"`
}

// ContentBlock is a tagged variant: exactly one of Paragraph or Element
// is set, according to Kind.
type ContentBlock struct {
	Kind      BlockKind       `json:"kind"`
	Paragraph *TextParagraph  `json:"paragraph,omitempty"`
	Element   *NonTextElement `json:"element,omitempty"`
}

// Page holds the ordered content blocks of one source page.
type Page struct {
	Index  int            `json:"index"` // 0-based
	Width  float64        `json:"width"` // points
	Height float64        `json:"height"`
	Blocks []ContentBlock `json:"blocks"`
}

// SourceDocument is the parsed, immutable representation of the input
// PDF. It is owned exclusively by the pipeline run that created it.
type SourceDocument struct {
	Pages []Page `json:"pages"`
}

// ParagraphCount returns the number of text paragraphs across all pages.
func (d *SourceDocument) ParagraphCount() int {
	n := 0
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Kind == BlockText {
				n++
			}
		}
	}
	return n
}

// -------------------------------------------------------
// Transformation
// -------------------------------------------------------

// TransformOptions is the per-run configuration. Constructed once per
// run and immutable thereafter.
type TransformOptions struct {
	Style             Style  `json:"style"`
	InsertDecorations bool   `json:"insert_decorations"`
	InsertEmoji       bool   `json:"insert_emoji"`
	AIMode            AIMode `json:"ai_mode"`
	DecorationEvery   int    `json:"decoration_every"` // paragraphs; <= 0 means never

	// Seed drives the spicy/chaotic randomness when Seeded is set, so a
	// fixed seed reproduces a run byte-for-byte.
	Seed   int64 `json:"seed,omitempty"`
	Seeded bool  `json:"seeded,omitempty"`
}

// DefaultTransformOptions mirrors the upload form defaults.
func DefaultTransformOptions() TransformOptions {
	return TransformOptions{
		Style:             StyleMild,
		InsertDecorations: true,
		InsertEmoji:       true,
		AIMode:            AIModeNone,
		DecorationEvery:   4,
	}
}

// RewriteResult is the rewritten text for one paragraph. Fallback is
// true when the external service failed and the local deterministic
// rewrite was substituted.
type RewriteResult struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// DecorationDirective instructs the composer to insert decorative
// content after the paragraph with the given document-wide index.
type DecorationDirective struct {
	AfterParagraphIndex int            `json:"after_paragraph_index"` // 1-based running counter
	Kind                DecorationKind `json:"kind"`
}

// -------------------------------------------------------
// Persistence models
// -------------------------------------------------------

// User represents a system user (admin surface only; funnyifying a
// document is anonymous).
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Run records one pipeline execution for the history view.
type Run struct {
	ID            uuid.UUID `json:"id" db:"id"`
	InputFileName string    `json:"input_file_name" db:"input_file_name"`
	Style         Style     `json:"style" db:"style"`
	AIMode        AIMode    `json:"ai_mode" db:"ai_mode"`
	Status        RunStatus `json:"status" db:"status"`
	ErrorKind     string    `json:"error_kind,omitempty" db:"error_kind"`
	Pages         int       `json:"pages" db:"pages"`
	Paragraphs    int       `json:"paragraphs" db:"paragraphs"`
	Fallbacks     int       `json:"fallbacks" db:"fallbacks"`
	DurationMS    int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
