package service

import (
	"fmt"
	"os"
	"sort"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// a4Width/a4Height are the fallback page dimensions (points) when a
// page carries no resolvable MediaBox.
const (
	a4Width  = 595.28
	a4Height = 841.89
)

// Extractor parses a source PDF into the structured document model.
// Text runs come from ledongthuc/pdf (positioned fragments); structure
// validation and image-object discovery go through pdfcpu.
type Extractor struct {
	cfg config.EngineConfig
}

// NewExtractor creates a new Extractor.
func NewExtractor(cfg config.EngineConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract parses the PDF at path. The parse is read-only; all failures
// are ErrKindParse.
func (e *Extractor) Extract(path string) (*models.SourceDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, parseError("reading input", err)
	}
	if e.cfg.MaxFileBytes > 0 && info.Size() > e.cfg.MaxFileBytes {
		return nil, parseError(fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), e.cfg.MaxFileBytes), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, parseError("opening input", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, parseError("not a well-formed PDF", err)
	}
	if e.cfg.MaxPages > 0 && pctx.PageCount > e.cfg.MaxPages {
		return nil, parseError(fmt.Sprintf("too many pages: %d (max %d)", pctx.PageCount, e.cfg.MaxPages), nil)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, parseError("opening PDF for text extraction", err)
	}
	defer file.Close()

	doc := &models.SourceDocument{Pages: make([]models.Page, 0, pctx.PageCount)}

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		page := models.Page{Index: pageNr - 1, Width: a4Width, Height: a4Height}

		if pageNr <= reader.NumPage() {
			p := reader.Page(pageNr)
			if !p.V.IsNull() {
				page.Width, page.Height = pageSize(p)
				runs := readTextRuns(p)
				for _, para := range groupParagraphs(runs, e.cfg.LineGapFactor) {
					para := para
					page.Blocks = append(page.Blocks, models.ContentBlock{
						Kind:      models.BlockText,
						Paragraph: &para,
					})
				}
			}
		}

		// Image XObjects ride along as opaque blocks after the text,
		// payload untouched.
		for _, el := range extractImageElements(pctx, pageNr) {
			el := el
			page.Blocks = append(page.Blocks, models.ContentBlock{
				Kind:    models.BlockElement,
				Element: &el,
			})
		}

		doc.Pages = append(doc.Pages, page)
	}

	return doc, nil
}

// textRun is one positioned fragment from the content stream.
type textRun struct {
	text string
	x, y float64
	w    float64 // advance width; 0 when the reader gave none
	size float64 // font size, used as the line-height proxy
}

// readTextRuns collects the positioned text fragments of one page.
// ledongthuc/pdf panics on some malformed content streams, so the read
// is fenced.
func readTextRuns(p pdf.Page) (runs []textRun) {
	defer func() {
		if r := recover(); r != nil {
			runs = nil
		}
	}()

	content := p.Content()
	runs = make([]textRun, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 12
		}
		runs = append(runs, textRun{text: t.S, x: t.X, y: t.Y, w: t.W, size: size})
	}
	return runs
}

// pageSize resolves the page MediaBox, walking up the page tree since
// the entry may be inherited. Falls back to A4.
func pageSize(p pdf.Page) (float64, float64) {
	v := p.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		mb := v.Key("MediaBox")
		if !mb.IsNull() && mb.Len() == 4 {
			w := mb.Index(2).Float64() - mb.Index(0).Float64()
			h := mb.Index(3).Float64() - mb.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return a4Width, a4Height
}

// groupParagraphs turns positioned runs into paragraphs. Runs are first
// bucketed into lines by Y, then consecutive lines merge into one
// paragraph until the vertical gap exceeds gapFactor × the dominant
// line height.
func groupParagraphs(runs []textRun, gapFactor float64) []models.TextParagraph {
	if len(runs) == 0 {
		return nil
	}
	if gapFactor <= 0 {
		gapFactor = 1.5
	}

	lines := groupLines(runs)
	dominant := dominantLineHeight(lines)

	var paras []models.TextParagraph
	var cur []textLine
	flush := func() {
		if len(cur) == 0 {
			return
		}
		paras = append(paras, buildParagraph(cur))
		cur = nil
	}

	for i, ln := range lines {
		if i > 0 {
			gap := lines[i-1].y - ln.y
			if gap > gapFactor*dominant {
				flush()
			}
		}
		cur = append(cur, ln)
	}
	flush()
	return paras
}

// textLine is an assembled line of text with its geometry.
type textLine struct {
	text   string
	x, y   float64
	width  float64
	height float64
}

// groupLines buckets runs by Y coordinate (top to bottom, since PDF
// user space has its origin at the bottom-left) and assembles each
// line's text left to right.
func groupLines(runs []textRun) []textLine {
	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var lines []textLine
	var bucket []textRun
	flush := func() {
		if len(bucket) == 0 {
			return
		}
		lines = append(lines, assembleLine(bucket))
		bucket = nil
	}

	for i, r := range sorted {
		if i > 0 {
			// Same line when the Y delta is within half the font size.
			prev := bucket[len(bucket)-1]
			if prev.y-r.y > prev.size*0.5 {
				flush()
			}
		}
		bucket = append(bucket, r)
	}
	flush()
	return lines
}

// assembleLine joins a line's runs, inserting a space when the
// horizontal gap between fragments is wide enough to mean one.
func assembleLine(bucket []textRun) textLine {
	sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].x < bucket[j].x })

	line := textLine{x: bucket[0].x, y: bucket[0].y}
	text := ""
	prevEnd := bucket[0].x
	for i, r := range bucket {
		if i > 0 && r.x-prevEnd > r.size*0.3 {
			text += " "
		}
		text += r.text
		prevEnd = r.x + runWidth(r)
		if r.size > line.height {
			line.height = r.size
		}
	}
	line.text = text
	line.width = prevEnd - line.x
	return line
}

// runWidth is the run's advance. When the reader gave no explicit
// width, the average glyph is estimated at half the font size.
func runWidth(r textRun) float64 {
	if r.w > 0 {
		return r.w
	}
	return float64(len([]rune(r.text))) * r.size * 0.5
}

// dominantLineHeight is the median line height of the page.
func dominantLineHeight(lines []textLine) float64 {
	if len(lines) == 0 {
		return 12
	}
	heights := make([]float64, 0, len(lines))
	for _, ln := range lines {
		if ln.height > 0 {
			heights = append(heights, ln.height)
		}
	}
	if len(heights) == 0 {
		return 12
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}

// buildParagraph merges consecutive lines into one TextParagraph with
// a bounding box covering them all.
func buildParagraph(lines []textLine) models.TextParagraph {
	text := ""
	minX, maxX := lines[0].x, lines[0].x+lines[0].width
	top, bottom := lines[0].y+lines[0].height, lines[0].y
	for i, ln := range lines {
		if i > 0 {
			text += " "
		}
		text += ln.text
		if ln.x < minX {
			minX = ln.x
		}
		if ln.x+ln.width > maxX {
			maxX = ln.x + ln.width
		}
		if ln.y < bottom {
			bottom = ln.y
		}
		if ln.y+ln.height > top {
			top = ln.y + ln.height
		}
	}
	return models.TextParagraph{
		Text: text,
		BBox: models.BBox{X: minX, Y: bottom, W: maxX - minX, H: top - bottom},
	}
}

// extractImageElements discovers the image XObjects referenced by a
// page and carries their raw streams as opaque payloads.
func extractImageElements(pctx *model.Context, pageNr int) []models.NonTextElement {
	if pctx.Optimize == nil {
		return nil
	}

	var els []models.NonTextElement
	for _, objNr := range pdfcpu.ImageObjNrs(pctx, pageNr) {
		entry := pctx.Table[objNr]
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}

		el := models.NonTextElement{
			Payload: sd.Raw,
			ObjNr:   objNr,
		}
		if filter, found := sd.Find("Filter"); found {
			if name, isName := filter.(types.Name); isName {
				el.Filter = string(name)
			}
		}
		if cs, found := sd.Find("ColorSpace"); found {
			if name, isName := cs.(types.Name); isName {
				el.ColorSpace = string(name)
			}
		}
		if bpc, found := sd.Find("BitsPerComponent"); found {
			if n, isInt := bpc.(types.Integer); isInt {
				el.BitsPerComponent = int(n)
			}
		}
		if w, found := sd.Find("Width"); found {
			if n, isInt := w.(types.Integer); isInt {
				el.BBox.W = float64(n)
			}
		}
		if h, found := sd.Find("Height"); found {
			if n, isInt := h.(types.Integer); isInt {
				el.BBox.H = float64(n)
			}
		}
		els = append(els, el)
	}
	return els
}
