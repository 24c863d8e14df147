package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/pkg/logger"
)

var (
	billingTypes = []string{"Flat price", "Unit price", "Tier flat price", "Tier unit price", ""}
	frequencies  = []string{"monthly", "quarterly", "annually", "one-time", "Month(s)", "Year(s)"}
	unitLabels   = []string{"seat", "user", "license", "location", "page"}
	wrappers     = []string{
		"Here is the extracted schedule:\n%s\nLet me know if you need anything else.",
		"```json\n%s\n```",
		"Sure! %s",
	}
)

// Generator builds synthetic documents. It is not safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
	names []string
	cfg   *Config
}

// NewGenerator returns a generator seeded from cfg.
func NewGenerator(cfg *Config) *Generator {
	names := make([]string, 0, len(catalog.DefaultItems()))
	for name := range catalog.DefaultItems() {
		names = append(names, name)
	}
	slices.Sort(names)
	return &Generator{faker: gofakeit.New(cfg.Seed), names: names, cfg: cfg}
}

// Documents generates cfg.Documents documents. A share of them, set by
// cfg.Duplicates, reuse an earlier document id.
func (g *Generator) Documents(ctx context.Context) ([]Document, error) {
	logger.Get().Info(ctx, "generating documents", logger.Int("documents", g.cfg.Documents))

	docs := make([]Document, 0, g.cfg.Documents)
	for i := 0; i < g.cfg.Documents; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		if i > 0 && g.chance(g.cfg.Duplicates) {
			prev := docs[g.faker.Number(0, len(docs)-1)]
			docs = append(docs, Document{DocumentID: prev.DocumentID, Runs: prev.Runs})
			continue
		}
		doc, err := g.Document()
		if err != nil {
			return nil, fmt.Errorf("generate document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Document generates one document with one or two runs.
func (g *Generator) Document() (Document, error) {
	first := g.run()
	runs := []map[string]any{first}
	if g.faker.Number(0, 4) > 0 {
		runs = append(runs, g.second(first))
	}

	doc := Document{DocumentID: uuid.NewString()}
	for _, run := range runs {
		b, err := json.Marshal(run)
		if err != nil {
			return Document{}, fmt.Errorf("encode run: %w", err)
		}
		if g.chance(g.cfg.RawText) {
			text := fmt.Sprintf(g.faker.RandomString(wrappers), b)
			if b, err = json.Marshal(text); err != nil {
				return Document{}, fmt.Errorf("encode raw run: %w", err)
			}
		}
		doc.Runs = append(doc.Runs, b)
	}
	return doc, nil
}

func (g *Generator) run() map[string]any {
	n := g.faker.Number(1, 5)
	items := make([]any, 0, n)
	var sum float64
	for i := 0; i < n; i++ {
		item := g.item()
		if p, ok := item["total_price"].(float64); ok {
			sum += p
		}
		items = append(items, item)
	}
	run := map[string]any{
		"schedules": items,
		"issues":    []any{},
		"totals_check": map[string]any{
			"sum_of_items":          sum,
			"contract_total_if_any": nil,
		},
		"customer": map[string]any{
			"name":  g.faker.Company(),
			"email": g.faker.Email(),
		},
	}
	if g.chance(0.1) {
		run["issues"] = []any{"Page " + g.faker.Numerify("#") + " was partially unreadable"}
	}
	return run
}

func (g *Generator) item() map[string]any {
	start := g.faker.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	name := g.faker.RandomString(g.names)
	if g.chance(0.2) {
		name = g.faker.Company() + " " + g.faker.BuzzWord()
	}
	item := map[string]any{
		"item_name":    name,
		"billing_type": g.faker.RandomString(billingTypes),
		"frequency":    g.faker.RandomString(frequencies),
		"start_date":   start.Format("2006-01-02"),
		"periods":      g.faker.Number(1, 36),
		"total_price":  g.faker.Price(10, 5000),
	}
	switch item["billing_type"] {
	case "Unit price":
		qty := g.faker.Number(1, 200)
		unit := g.faker.Price(1, 50)
		item["unit_label"] = g.faker.RandomString(unitLabels)
		item["quantity"] = qty
		item["price_per_unit"] = unit
		item["total_price"] = float64(qty) * unit
	case "Tier flat price", "Tier unit price":
		item["tiers"] = []any{
			map[string]any{"tier_name": "Starter", "min_quantity": 0, "applied_when": "up to 100 units", "price": g.faker.Price(1, 10)},
			map[string]any{"tier_name": "Volume", "min_quantity": 101, "price": g.faker.Price(0.5, 5)},
		}
	}
	if g.chance(0.1) {
		delete(item, "total_price")
		item["description"] = fmt.Sprintf("Includes onboarding, $%s per month", g.faker.Numerify("###"))
	}
	return item
}

// second copies first, drifting prices and dropping items for a share of
// documents so the agreement scorer has something to flag.
func (g *Generator) second(first map[string]any) map[string]any {
	src := first["schedules"].([]any)
	items := make([]any, 0, len(src))
	drift := g.chance(g.cfg.Drift)
	for _, it := range src {
		item := make(map[string]any, len(it.(map[string]any)))
		for k, v := range it.(map[string]any) {
			item[k] = v
		}
		if drift {
			if p, ok := item["total_price"].(float64); ok {
				item["total_price"] = p * g.faker.Float64Range(0.5, 1.5)
			}
			if g.chance(0.3) {
				continue
			}
		}
		items = append(items, item)
	}
	return map[string]any{"schedules": items, "issues": []any{}}
}

func (g *Generator) chance(p float64) bool {
	return p > 0 && g.faker.Float64Range(0, 1) < p
}
