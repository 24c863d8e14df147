// Package catalog resolves free-text item names to integration item ids
// of the downstream billing system.
package catalog

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Method names how a match was found.
type Method string

// Match methods in the order they are tried.
const (
	MethodExact     Method = "exact"
	MethodCanonical Method = "canonical"
	MethodFuzzy     Method = "fuzzy"
)

// Match is a resolved catalog entry.
type Match struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Method Method  `json:"method"`
	Score  float64 `json:"score"`
}

type entry struct {
	name   string
	id     string
	tokens map[string]struct{}
}

// Matcher is a read-only catalog lookup. It is safe for concurrent use.
type Matcher struct {
	items     map[string]string
	stop      map[string]struct{}
	flavor    map[string]struct{}
	threshold float64

	entries     []entry
	byLower     map[string]*entry
	byCanonical map[string]*entry
}

// New builds a Matcher over the default catalog unless WithItems is given.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		items:     DefaultItems(),
		stop:      set(DefaultStopWords),
		flavor:    set(DefaultFlavorWords),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}

	names := make([]string, 0, len(m.items))
	for name := range m.items {
		names = append(names, name)
	}
	slices.Sort(names)

	m.entries = make([]entry, 0, len(names))
	for _, name := range names {
		m.entries = append(m.entries, entry{name: name, id: m.items[name], tokens: m.tokens(name)})
	}
	m.byLower = make(map[string]*entry, len(m.entries))
	m.byCanonical = make(map[string]*entry, len(m.entries))
	for i := range m.entries {
		e := &m.entries[i]
		lower := strings.ToLower(strings.TrimSpace(e.name))
		if _, ok := m.byLower[lower]; !ok {
			m.byLower[lower] = e
		}
		canon := Canonicalize(e.name)
		if _, ok := m.byCanonical[canon]; !ok {
			m.byCanonical[canon] = e
		}
	}
	return m
}

// Len returns the number of catalog entries.
func (m *Matcher) Len() int { return len(m.entries) }

// Match resolves name by exact case-insensitive equality, then canonical
// equality, then token-overlap scoring. Fuzzy candidates scoring below the
// threshold are rejected rather than guessed.
func (m *Matcher) Match(name string) (Match, bool) {
	if strings.TrimSpace(name) == "" {
		return Match{}, false
	}
	if e, ok := m.byLower[strings.ToLower(strings.TrimSpace(name))]; ok {
		return Match{ID: e.id, Name: e.name, Method: MethodExact, Score: 1}, true
	}
	if e, ok := m.byCanonical[Canonicalize(name)]; ok {
		return Match{ID: e.id, Name: e.name, Method: MethodCanonical, Score: 1}, true
	}

	query := m.tokens(name)
	if len(query) == 0 {
		return Match{}, false
	}
	var (
		best      *entry
		bestScore float64
	)
	for i := range m.entries {
		e := &m.entries[i]
		s, ok := m.score(query, e.tokens)
		if ok && s > bestScore {
			best, bestScore = e, s
		}
	}
	if best == nil || bestScore < m.threshold {
		return Match{}, false
	}
	return Match{ID: best.id, Name: best.name, Method: MethodFuzzy, Score: bestScore}, true
}

// score rates token overlap between a query and a catalog entry. Overlap
// made only of flavor words counts only when at least two tokens overlap.
func (m *Matcher) score(query, cand map[string]struct{}) (float64, bool) {
	if len(cand) == 0 {
		return 0, false
	}
	inter, substantive := 0, false
	for t := range query {
		if _, ok := cand[t]; !ok {
			continue
		}
		inter++
		if _, flavor := m.flavor[t]; !flavor {
			substantive = true
		}
	}
	if inter == 0 || (!substantive && inter < 2) {
		return 0, false
	}
	union := len(query) + len(cand) - inter
	s := float64(inter)/float64(union) +
		0.25*float64(inter)/float64(len(query)) +
		0.15*float64(inter)/float64(len(cand))
	if substantive {
		s += 0.10
	}
	return s, true
}

func (m *Matcher) tokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range strings.Fields(Canonicalize(s)) {
		if _, stop := m.stop[t]; !stop {
			out[t] = struct{}{}
		}
	}
	return out
}

var (
	addonRe     = regexp.MustCompile(`\badd[\s-]?on\b`)
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9]+`)
	digitGapRe  = regexp.MustCompile(`(\d) (\d)`)
	magnitudeRe = regexp.MustCompile(`(\d) ([km])\b`)
)

// Canonicalize folds s to lower-case ASCII words: diacritics stripped,
// "&" spelled "and", "add-on" removed, punctuation collapsed to single
// spaces and digit groups such as "1 000" or "10 k" joined.
func Canonicalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "&", " and ")
	folded = addonRe.ReplaceAllString(folded, " ")
	folded = strings.TrimSpace(nonAlnumRe.ReplaceAllString(folded, " "))
	for digitGapRe.MatchString(folded) {
		folded = digitGapRe.ReplaceAllString(folded, "$1$2")
	}
	return magnitudeRe.ReplaceAllString(folded, "$1$2")
}

func set(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return out
}

// Defaults.
const DefaultThreshold = 0.55

var (
	DefaultStopWords = []string{
		"seat", "seats", "fee", "fees", "subscription", "license", "licenses",
		"monthly", "annual", "plan", "package", "service", "services",
		"the", "a", "of", "for", "and", "with", "per", "user", "users",
	}

	DefaultFlavorWords = []string{
		"pro", "premier", "plus", "custom", "basic", "standard", "premium",
		"advanced", "enterprise", "starter", "lite",
	}

	defaultNames = []string{
		"Agent Website",
		"Blog Pro",
		"Brokerage Website",
		"Content Marketing",
		"Custom Domain",
		"Hosting",
		"IDX Integration",
		"Implementation",
		"Lead Nurture",
		"Mobile App",
		"Paid Search Management",
		"SEO Premier",
		"SEO Pro",
		"Setup Fee",
		"Social Media Management",
		"Website Platform",
	}
)

// catalogNamespace scopes the deterministic ids of the default catalog.
var catalogNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/okian/revsched/catalog"))

// DefaultItems returns the built-in catalog. Ids are stable UUIDv5 values
// derived from the item name.
func DefaultItems() map[string]string {
	out := make(map[string]string, len(defaultNames))
	for _, name := range defaultNames {
		out[name] = ItemID(name)
	}
	return out
}

// ItemID derives the stable id the default catalog assigns to name.
func ItemID(name string) string {
	return uuid.NewSHA1(catalogNamespace, []byte(name)).String()
}
