package service

import (
	"math/rand"
	"regexp"
	"strings"

	"funnypdf/internal/models"
)

// substitution is one entry of the fixed pun dictionary. Entries are
// kept in a slice (not a map) so application order is stable.
type substitution struct {
	pattern *regexp.Regexp
	repl    string
}

// funnyMap is the fixed synonym/pun dictionary shared by all styles.
var funnyMap = []substitution{
	{regexp.MustCompile(`(?i)\bobese\b`), "chonky"},
	{regexp.MustCompile(`(?i)\boverweight\b`), "chonky"},
	{regexp.MustCompile(`(?i)\bfat\b`), "snack-powered"},
	{regexp.MustCompile(`(?i)\bbullied\b`), "got roasted"},
	{regexp.MustCompile(`(?i)\bargue\b`), "enter a spicy debate"},
	{regexp.MustCompile(`(?i)\bangry\b`), "internally screaming"},
	{regexp.MustCompile(`(?i)\bmanager\b`), "email overlord"},
	{regexp.MustCompile(`(?i)\bprincipal\b`), "rule grandmaster"},
	{regexp.MustCompile(`(?i)\bteacher\b`), "knowledge dispenser"},
	{regexp.MustCompile(`(?i)\bboss\b`), "overlord of coffee"},
	{regexp.MustCompile(`(?i)\bworked hard\b`), "sweated like a gamer on 1% battery"},
	{regexp.MustCompile(`(?i)\bmeeting\b`), "snooze summit"},
	{regexp.MustCompile(`(?i)\bstudy\b`), "lore grind"},
	{regexp.MustCompile(`(?i)\bstudent\b`), "XP farmer"},
}

// emojiPool is sampled when sprinkling emoji onto a paragraph.
var emojiPool = []string{
	"😂", "😼", "✨", "🙃", "🫠", "🔥", "🥲", "🧠", "🫡", "🤝", "🍿", "🐱", "📚", "☕", "🌀", "🧃",
}

// fakeCites are appended to sentences in the spicier styles.
var fakeCites = []string{
	"(TotallyRealJournal, 2024)",
	"(See: Figure 69)",
	"(Peer-reviewed by 3 cats)",
	"(Source: Trust me bro)",
	"(As foretold by ancient memes)",
}

// funnyPrefixes open a paragraph in the spicier styles.
var funnyPrefixes = map[models.Style][]string{
	models.StyleSpicy: {
		"Breaking news:", "URGENT UPDATE:", "Scientists hate this:", "You won't believe this:",
	},
	models.StyleChaotic: {
		"BREAKING: Local PDF declares:", "CHAOS REPORT:", "EMERGENCY BULLETIN:", "DRAMATIC PLOT TWIST:",
	},
}

// styleIntensity is the randomized-feature probability per style. Mild
// is listed for completeness but takes the deterministic path.
var styleIntensity = map[models.Style]float64{
	models.StyleMild:    0.2,
	models.StyleSpicy:   0.5,
	models.StyleChaotic: 0.9,
}

// sentenceRe splits a paragraph into sentences, keeping terminators
// attached so no text is lost when reordering.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*\s*`)

// Humorist applies one run's humor configuration to paragraphs. It is
// created once per pipeline run and is safe for concurrent paragraph
// rewrites: randomness is derived per paragraph from the run seed, so
// output does not depend on scheduling order.
type Humorist struct {
	opts models.TransformOptions
	seed int64
}

// NewHumorist creates a Humorist for one run. When opts.Seeded is
// false, seed is the caller-provided entropy for this run.
func NewHumorist(opts models.TransformOptions, fallbackSeed int64) *Humorist {
	seed := fallbackSeed
	if opts.Seeded {
		seed = opts.Seed
	}
	return &Humorist{opts: opts, seed: seed}
}

// paraRand returns a rand.Rand deterministic in (run seed, paragraph
// index), so concurrent rewrites stay reproducible under a fixed seed.
func (h *Humorist) paraRand(paraIdx int) *rand.Rand {
	return rand.New(rand.NewSource(h.seed + int64(paraIdx)*0x9E3779B9))
}

// RewriteParagraph rewrites one paragraph according to the run style.
// paraIdx is the document-wide 0-based paragraph index. Paragraphs map
// 1:1; no style ever drops or merges a paragraph.
func (h *Humorist) RewriteParagraph(text string, paraIdx int) string {
	switch h.opts.Style {
	case models.StyleSpicy:
		return h.rewriteRandomized(text, paraIdx, false)
	case models.StyleChaotic:
		return h.rewriteRandomized(text, paraIdx, true)
	default:
		return h.rewriteMild(text, paraIdx)
	}
}

// rewriteMild is the fully deterministic path: every dictionary entry
// is applied, and emoji (when enabled) are picked by position rather
// than randomness, so identical input yields identical output.
func (h *Humorist) rewriteMild(text string, paraIdx int) string {
	out := applySubstitutions(text, nil, 1)
	if h.opts.InsertEmoji {
		out = out + " " + emojiPool[paraIdx%len(emojiPool)]
	}
	return out
}

// rewriteRandomized is the spicy/chaotic path.
func (h *Humorist) rewriteRandomized(text string, paraIdx int, shuffle bool) string {
	rng := h.paraRand(paraIdx)
	intensity := styleIntensity[h.opts.Style]

	out := text
	if shuffle {
		out = shuffleSentences(out, rng)
	}
	out = applySubstitutions(out, rng, intensity)
	out = addEmphasis(out, rng, intensity)
	out = addFakeCitations(out, rng, intensity)
	out = addFunnyPrefix(out, h.opts.Style, rng)
	if h.opts.InsertEmoji {
		out = sprinkleEmojis(out, rng, intensity)
	}
	return out
}

// FallbackRewrite is the deterministic local substitute used when the
// external rewrite service fails: the spicy treatment under the run
// seed, so degraded runs remain reproducible.
func (h *Humorist) FallbackRewrite(text string, paraIdx int) string {
	rng := h.paraRand(paraIdx)
	out := applySubstitutions(text, rng, styleIntensity[models.StyleSpicy])
	out = addEmphasis(out, rng, styleIntensity[models.StyleSpicy])
	if h.opts.InsertEmoji {
		out = sprinkleEmojis(out, rng, styleIntensity[models.StyleSpicy])
	}
	return out
}

// applySubstitutions runs the pun dictionary over text. With a nil rng
// every entry applies; otherwise each match applies with probability
// intensity (matching the original behavior of the spicier styles).
func applySubstitutions(text string, rng *rand.Rand, intensity float64) string {
	for _, sub := range funnyMap {
		repl := sub.repl
		text = sub.pattern.ReplaceAllStringFunc(text, func(m string) string {
			if rng == nil || rng.Float64() < intensity {
				return repl
			}
			return m
		})
	}
	return text
}

// shuffleSentences permutes sentence order within a paragraph. All
// sentences survive; only their order changes.
func shuffleSentences(text string, rng *rand.Rand) string {
	raw := sentenceRe.FindAllString(text, -1)
	if len(raw) < 2 {
		return text
	}
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			sentences = append(sentences, t)
		}
	}
	rng.Shuffle(len(sentences), func(i, j int) {
		sentences[i], sentences[j] = sentences[j], sentences[i]
	})
	return strings.Join(sentences, " ")
}

// addEmphasis upgrades terminal periods to exclamations and shouts the
// occasional word.
func addEmphasis(text string, rng *rand.Rand, intensity float64) string {
	words := strings.Fields(text)
	for i, w := range words {
		if len(w) > 3 && rng.Float64() < intensity/6 {
			words[i] = strings.ToUpper(w)
		}
	}
	out := strings.Join(words, " ")
	if strings.HasSuffix(out, ".") && rng.Float64() < intensity {
		out = strings.TrimSuffix(out, ".") + "!"
	}
	return out
}

// addFakeCitations appends a citation to sentences at random.
func addFakeCitations(text string, rng *rand.Rand, intensity float64) string {
	raw := sentenceRe.FindAllString(text, -1)
	if len(raw) == 0 {
		return text
	}
	var sb strings.Builder
	for _, s := range raw {
		trimmed := strings.TrimRight(s, " ")
		sb.WriteString(trimmed)
		if strings.TrimSpace(trimmed) != "" && rng.Float64() < intensity/3 {
			sb.WriteString(" ")
			sb.WriteString(fakeCites[rng.Intn(len(fakeCites))])
		}
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

// addFunnyPrefix opens the paragraph with a style-appropriate headline,
// 30% of the time.
func addFunnyPrefix(text string, style models.Style, rng *rand.Rand) string {
	prefixes := funnyPrefixes[style]
	if len(prefixes) == 0 || rng.Float64() >= 0.3 {
		return text
	}
	return prefixes[rng.Intn(len(prefixes))] + " " + text
}

// sprinkleEmojis appends one or two emoji to the paragraph.
func sprinkleEmojis(text string, rng *rand.Rand, intensity float64) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	count := 0
	if rng.Float64() < intensity {
		count++
	}
	if rng.Float64() < intensity/2 {
		count++
	}
	if count == 0 {
		return text
	}
	picks := make([]string, count)
	for i := range picks {
		picks[i] = emojiPool[rng.Intn(len(emojiPool))]
	}
	return text + " " + strings.Join(picks, " ")
}
