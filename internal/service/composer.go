package service

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

const (
	pageMarginLeft  = 40.0
	pageMarginTop   = 50.0
	pageMarginRight = 40.0
	bodyLineHeight  = 14.0
	paragraphGap    = 8.0
	bodyFontSize    = 12.0
)

// Composer re-serializes the rewritten document into PDF bytes. One
// output page per source page; text re-flows inside each paragraph's
// original box width and shifts subsequent content downward when it
// grows. Auto page break stays off so the page-count invariant holds;
// content past the page bottom is clipped, the one accepted layout
// compromise. Without a configured UTF-8 font the output uses core
// Helvetica and runes outside its range (emoji included) are dropped
// from rendered text rather than written as garbage bytes.
type Composer struct {
	cfg  config.EngineConfig
	cats CatFetcher
}

// NewComposer creates a Composer.
func NewComposer(cfg config.EngineConfig, cats CatFetcher) *Composer {
	return &Composer{cfg: cfg, cats: cats}
}

// Compose renders the output document. results must hold exactly one
// entry per text paragraph of doc, in document order; a mismatch is an
// ErrKindCompose contract violation.
func (c *Composer) Compose(ctx context.Context, doc *models.SourceDocument, results []models.RewriteResult, directives []models.DecorationDirective) ([]byte, error) {
	if n := doc.ParagraphCount(); n != len(results) {
		return nil, composeError(fmt.Sprintf("rewrite results (%d) do not match paragraphs (%d)", len(results), n), nil)
	}

	byIndex := make(map[int]models.DecorationKind, len(directives))
	for _, d := range directives {
		byIndex[d.AfterParagraphIndex] = d.Kind
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	family := "Helvetica"
	if c.cfg.FontPath != "" {
		family = "FunnyUnicode"
		pdf.AddUTF8Font(family, "", c.cfg.FontPath)
		pdf.AddUTF8Font(family, "B", c.cfg.FontPath)
	}
	pdf.SetMargins(pageMarginLeft, pageMarginTop, pageMarginRight)
	pdf.SetAutoPageBreak(false, 0)

	// Header and footer text stays ASCII (plain hyphen, no dash) so
	// core-font runs render it unchanged.
	pdf.SetHeaderFunc(func() {
		pdf.SetFont(family, "B", 10)
		pdf.CellFormat(0, 12, "Chaotic PDF Reader - Fun Edition", "", 0, "C", false, 0, "")
		pdf.Ln(18)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-30)
		pdf.SetFont(family, "", 8)
		footer := fmt.Sprintf("Page %d  -  generated %s", pdf.PageNo(), time.Now().Format("2006-01-02 15:04"))
		pdf.CellFormat(0, 10, footer, "", 0, "C", false, 0, "")
	})

	counter := 0
	for _, page := range doc.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		pdf.SetFont(family, "", bodyFontSize)

		for _, block := range page.Blocks {
			switch block.Kind {
			case models.BlockText:
				counter++
				c.renderParagraph(ctx, pdf, page, *block.Paragraph, results[counter-1], byIndex[counter], counter)
			case models.BlockElement:
				c.renderElement(pdf, page, *block.Element)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, composeError("serializing output document", err)
	}

	if err := c.verify(buf.Bytes(), len(doc.Pages)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderParagraph writes one rewritten paragraph, re-flowing it inside
// the original box width, then applies any decoration directive.
func (c *Composer) renderParagraph(ctx context.Context, pdf *fpdf.Fpdf, page models.Page, para models.TextParagraph, result models.RewriteResult, kind models.DecorationKind, counter int) {
	text := result.Text
	if kind == models.DecorationEmoji || kind == models.DecorationBoth {
		// Inline emoji glyph appended to the rewritten text.
		text = text + " " + emojiPool[(counter-1)%len(emojiPool)]
	}
	if c.cfg.FontPath == "" {
		text = coreFontText(text)
	}

	x, width := paragraphBox(page, para)
	pdf.SetX(x)
	pdf.MultiCell(width, bodyLineHeight, text, "", "L", false)
	pdf.Ln(paragraphGap)

	if kind == models.DecorationImage || kind == models.DecorationBoth {
		c.renderCat(ctx, pdf, page, counter)
	}
}

// paragraphBox clamps the source bounding box to the printable area.
// Degenerate boxes fall back to the full text column.
func paragraphBox(page models.Page, para models.TextParagraph) (x, width float64) {
	usable := page.Width - pageMarginLeft - pageMarginRight
	x = para.BBox.X
	width = para.BBox.W
	if x < pageMarginLeft || x > page.Width-pageMarginRight {
		x = pageMarginLeft
	}
	if width < 50 || x+width > page.Width-pageMarginRight {
		width = page.Width - pageMarginRight - x
	}
	if width < 50 || width > usable {
		x, width = pageMarginLeft, usable
	}
	return x, width
}

// renderCat inserts a downloaded cat image, centered, sized to the
// configured fraction of the page width.
func (c *Composer) renderCat(ctx context.Context, pdf *fpdf.Fpdf, page models.Page, counter int) {
	if c.cats == nil {
		return
	}
	data, imgType := c.cats.Fetch(ctx)
	name := fmt.Sprintf("cat-%d", counter)

	opts := fpdf.ImageOptions{ImageType: imgType}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		// A bad image must not poison the document.
		pdf.ClearError()
		return
	}

	frac := c.cfg.DecorWidthFrac
	if frac <= 0 || frac > 1 {
		frac = 0.45
	}
	w := page.Width * frac
	h := w * info.Height() / info.Width()
	x := (page.Width - w) / 2
	pdf.ImageOptions(name, x, pdf.GetY(), w, h, false, opts, 0, "")
	if pdf.Err() {
		pdf.ClearError()
		return
	}
	pdf.SetY(pdf.GetY() + h + paragraphGap)
}

// renderElement re-embeds a source image element when an embeddable
// JPEG can be obtained from its stream. Elements with filters or color
// spaces that have no conversion path are carried in the model but
// skipped in rendering.
func (c *Composer) renderElement(pdf *fpdf.Fpdf, page models.Page, el models.NonTextElement) {
	data, ok := elementJPEG(el)
	if !ok {
		return
	}

	name := fmt.Sprintf("src-%d-%d", page.Index, el.ObjNr)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		pdf.ClearError()
		return
	}

	usable := page.Width - pageMarginLeft - pageMarginRight
	w := el.BBox.W
	if w <= 0 || w > usable {
		w = usable / 2
	}
	pdf.ImageOptions(name, pageMarginLeft, pdf.GetY(), w, 0, false, opts, 0, "")
	if pdf.Err() {
		pdf.ClearError()
		return
	}
	pdf.SetY(pdf.GetY() + w*aspectOrSquare(el) + paragraphGap)
}

// elementJPEG obtains embeddable JPEG bytes for an image element:
// DCTDecode payloads already are baseline JPEG and pass through,
// flate-compressed RGB and grayscale rasters are re-encoded. Other
// filters and color spaces have no conversion path here.
func elementJPEG(el models.NonTextElement) ([]byte, bool) {
	switch el.Filter {
	case "DCTDecode":
		// JPEG SOI marker; anything else would error inside fpdf.
		if len(el.Payload) >= 4 && el.Payload[0] == 0xFF && el.Payload[1] == 0xD8 {
			return el.Payload, true
		}
	case "FlateDecode":
		return flateImageJPEG(el)
	}
	return nil, false
}

// flateImageJPEG decompresses an 8-bit DeviceRGB or DeviceGray raster
// and re-encodes it as JPEG. Predictor-filtered streams come out with a
// different sample count and are skipped by the exact-length check.
func flateImageJPEG(el models.NonTextElement) ([]byte, bool) {
	w, h := int(el.BBox.W), int(el.BBox.H)
	if w <= 0 || h <= 0 || w*h > 64<<20 || el.BitsPerComponent != 8 {
		return nil, false
	}

	var comps int
	switch el.ColorSpace {
	case "DeviceRGB":
		comps = 3
	case "DeviceGray":
		comps = 1
	default:
		return nil, false
	}

	zr, err := zlib.NewReader(bytes.NewReader(el.Payload))
	if err != nil {
		return nil, false
	}
	defer zr.Close()

	want := w * h * comps
	raw, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil || len(raw) != want {
		return nil, false
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * comps
			px := color.RGBA{A: 0xff}
			if comps == 3 {
				px.R, px.G, px.B = raw[i], raw[i+1], raw[i+2]
			} else {
				px.R, px.G, px.B = raw[i], raw[i], raw[i]
			}
			img.SetRGBA(x, y, px)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// coreFontText drops runes the core Helvetica encoding cannot carry,
// applied when no UTF-8 font is configured.
func coreFontText(s string) string {
	clean := true
	for _, r := range s {
		if r > 0xFF {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0xFF {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// aspectOrSquare returns height/width for the element, defaulting to 1.
func aspectOrSquare(el models.NonTextElement) float64 {
	if el.BBox.W > 0 && el.BBox.H > 0 {
		return el.BBox.H / el.BBox.W
	}
	return 1
}

// verify re-reads the produced bytes and checks the page-count
// invariant against the source. A mismatch is an engine defect.
func (c *Composer) verify(out []byte, wantPages int) error {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(out), conf)
	if err != nil {
		return composeError("output failed validation", err)
	}
	if pctx.PageCount != wantPages {
		return composeError(fmt.Sprintf("page count mismatch: produced %d, source has %d", pctx.PageCount, wantPages), nil)
	}
	return nil
}
