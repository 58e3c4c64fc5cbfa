// Package search ranks OCR snippets of stored documents against a free-text
// query. The index is built in memory per query batch, is read-only after
// construction and safe for concurrent use.
//
// Scoring uses Jaccard similarity between the query token set and each
// fact's token set: score = |Q ∩ F| / |Q ∪ F|. Tokens are lower-cased and
// folded (ä→ae, ß→ss, é→e) so "Ölwechsel" and "OELWECHSEL" match.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is the OCR text of one stored document.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Result is a ranked snippet with its similarity score.
type Result struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Option configures an Index.
type Option func(*config)

type config struct {
	minFactRunes int
	stopwords    map[string]struct{}
	maxPerDoc    int
}

func defaultConfig() config {
	return config{minFactRunes: 3, maxPerDoc: 2}
}

func WithMinFactRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minFactRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxPerDoc caps how many snippets of one document a query returns.
func WithMaxPerDoc(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPerDoc = n
		}
	}
}

// GermanStopwords are filler words common in invoices and queries.
var GermanStopwords = []string{
	"der", "die", "das", "und", "oder", "mit", "von", "für", "fur", "im", "in", "am", "an", "zu", "auf",
	"ein", "eine", "wann", "wo", "was", "wie", "habe", "ich", "mein", "meine", "the", "and", "of", "for",
}

type fact struct {
	docID  string
	title  string
	text   string
	tokens map[string]struct{}
}

// Index holds the facts of a set of documents.
type Index struct {
	cfg   config
	facts []fact
}

// NewIndex builds an Index over docs.
func NewIndex(docs []Document, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	idx := &Index{cfg: cfg}
	for _, d := range docs {
		for _, f := range Facts(d.Text) {
			t := normalizeWhitespace(f)
			if cfg.minFactRunes > 0 && utf8.RuneCountInString(t) < cfg.minFactRunes {
				continue
			}
			toks := tokenize(t, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			idx.facts = append(idx.facts, fact{docID: d.ID, title: d.Title, text: t, tokens: toks})
		}
	}
	return idx
}

// Len returns the number of indexed facts.
func (i *Index) Len() int { return len(i.facts) }

// TopK returns up to k best-matching snippets.
func (i *Index) TopK(q string, k int) []Result {
	if len(i.facts) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		fact
		score float64
	}
	buf := make([]scored, 0, min(k*4, len(i.facts)))
	for _, f := range i.facts {
		over := overlap(qTokens, f.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(f.tokens) - over)
		buf = append(buf, scored{fact: f, score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if la, lb := len(buf[a].text), len(buf[b].text); la != lb {
			return la < lb
		}
		return buf[a].text < buf[b].text
	})

	perDoc := make(map[string]int)
	out := make([]Result, 0, k)
	for _, s := range buf {
		if perDoc[s.docID] >= i.cfg.maxPerDoc {
			continue
		}
		perDoc[s.docID]++
		out = append(out, Result{DocID: s.docID, Title: s.title, Snippet: s.text, Score: s.score})
		if len(out) == k {
			break
		}
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// fold lower-cases s, spells out German umlauts and strips other diacritics.
func fold(s string) string {
	s = umlauts.Replace(strings.ToLower(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		return out
	}
	return s
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
