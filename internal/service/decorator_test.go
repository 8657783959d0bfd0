package service

import (
	"testing"

	"funnypdf/internal/models"
)

// docWithParagraphs builds a document spreading n paragraphs over pages
// of two paragraphs each.
func docWithParagraphs(n int) *models.SourceDocument {
	doc := &models.SourceDocument{}
	var page models.Page
	for i := 0; i < n; i++ {
		para := models.TextParagraph{Text: "paragraph"}
		page.Blocks = append(page.Blocks, models.ContentBlock{Kind: models.BlockText, Paragraph: &para})
		if len(page.Blocks) == 2 {
			doc.Pages = append(doc.Pages, page)
			page = models.Page{Index: len(doc.Pages)}
		}
	}
	if len(page.Blocks) > 0 {
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func TestPlan_Cadence(t *testing.T) {
	tests := []struct {
		name       string
		paragraphs int
		every      int
		want       int
	}{
		{"ten paragraphs every four", 10, 4, 2},
		{"exact multiple", 8, 4, 2},
		{"fewer than interval", 3, 4, 0},
		{"every paragraph", 5, 1, 5},
		{"zero disables", 10, 0, 0},
		{"negative disables", 10, -3, 0},
		{"empty document", 0, 4, 0},
	}

	s := NewDecoratorService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := models.DefaultTransformOptions()
			opts.DecorationEvery = tt.every

			got := s.Plan(docWithParagraphs(tt.paragraphs), opts)
			if len(got) != tt.want {
				t.Errorf("Plan() returned %d directives, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPlan_CounterSpansPages(t *testing.T) {
	s := NewDecoratorService()
	opts := models.DefaultTransformOptions()
	opts.DecorationEvery = 3

	// 7 paragraphs across 4 pages: directives after paragraphs 3 and 6.
	got := s.Plan(docWithParagraphs(7), opts)
	if len(got) != 2 {
		t.Fatalf("Plan() returned %d directives, want 2", len(got))
	}
	if got[0].AfterParagraphIndex != 3 || got[1].AfterParagraphIndex != 6 {
		t.Errorf("directive anchors = %d, %d, want 3, 6",
			got[0].AfterParagraphIndex, got[1].AfterParagraphIndex)
	}
}

func TestPlan_IgnoresElementBlocks(t *testing.T) {
	doc := docWithParagraphs(4)
	el := models.NonTextElement{ObjNr: 9}
	doc.Pages[0].Blocks = append(doc.Pages[0].Blocks, models.ContentBlock{
		Kind:    models.BlockElement,
		Element: &el,
	})

	opts := models.DefaultTransformOptions()
	opts.DecorationEvery = 4

	got := NewDecoratorService().Plan(doc, opts)
	if len(got) != 1 {
		t.Fatalf("Plan() returned %d directives, want 1", len(got))
	}
	if got[0].AfterParagraphIndex != 4 {
		t.Errorf("anchor = %d, want 4 (element blocks must not advance the counter)",
			got[0].AfterParagraphIndex)
	}
}

func TestDirectiveKind(t *testing.T) {
	tests := []struct {
		name   string
		cats   bool
		emoji  bool
		want   models.DecorationKind
		wantOK bool
	}{
		{"both", true, true, models.DecorationBoth, true},
		{"cats only", true, false, models.DecorationImage, true},
		{"emoji only", false, true, models.DecorationEmoji, true},
		{"neither", false, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := models.TransformOptions{InsertDecorations: tt.cats, InsertEmoji: tt.emoji}
			kind, ok := directiveKind(opts)
			if ok != tt.wantOK || kind != tt.want {
				t.Errorf("directiveKind() = (%q, %v), want (%q, %v)", kind, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPlan_NeitherFlagMeansNoDirectives(t *testing.T) {
	opts := models.TransformOptions{DecorationEvery: 1}
	if got := NewDecoratorService().Plan(docWithParagraphs(5), opts); got != nil {
		t.Errorf("Plan() with no decoration flags = %d directives, want none", len(got))
	}
}
