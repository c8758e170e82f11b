package query

import (
	"slices"
	"strings"

	"github.com/rickgao/coinfeed/internal/model"
)

// Result is one page of a query.
type Result struct {
	Items []model.CoinRecord
	Total int // matches before pagination
	Page  int
	Limit int
}

// TotalPages returns how many pages of Limit cover Total.
func (r Result) TotalPages() int {
	if r.Limit <= 0 {
		return 0
	}
	n := r.Total / r.Limit
	if r.Total%r.Limit != 0 {
		n++
	}
	return n
}

// Engine runs queries against snapshots.
type Engine struct {
	cfg Config
}

// NewEngine creates a query Engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run filters, sorts and paginates snap. It does not modify snap and returns
// the same result for the same inputs.
func (e *Engine) Run(snap *model.Snapshot, p Params) Result {
	p = p.Normalize(e.cfg)

	matches := filter(snap, p.Search)
	slices.SortStableFunc(matches, comparator(p.SortBy, p.Direction))

	res := Result{
		Items: []model.CoinRecord{},
		Total: len(matches),
		Page:  p.Page,
		Limit: p.Limit,
	}

	// Compare page index against the page count to avoid overflowing
	// (Page-1)*Limit for huge page numbers.
	if p.Page-1 >= res.TotalPages() {
		return res
	}

	start := (p.Page - 1) * p.Limit
	end := min(start+p.Limit, len(matches))

	res.Items = make([]model.CoinRecord, 0, end-start)
	for _, r := range matches[start:end] {
		res.Items = append(res.Items, *r)
	}

	return res
}

// filter returns pointers to the records whose name or symbol contains term,
// case-insensitively. An empty term matches everything.
func filter(snap *model.Snapshot, term string) []*model.CoinRecord {
	matches := make([]*model.CoinRecord, 0, snap.Len())
	needle := strings.ToLower(term)

	snap.All(func(_ int, r *model.CoinRecord) bool {
		if contains(r, needle) {
			matches = append(matches, r)
		}
		return true
	})

	return matches
}

// Matches reports whether r satisfies the search filter for term.
func Matches(r model.CoinRecord, term string) bool {
	return contains(&r, strings.ToLower(strings.TrimSpace(term)))
}

func contains(r *model.CoinRecord, needle string) bool {
	return needle == "" ||
		strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Symbol), needle)
}

// comparator orders records by field in the given direction. Missing
// quantities sort after every present value in both directions.
func comparator(field SortField, dir Direction) func(a, b *model.CoinRecord) int {
	sign := 1
	if dir == Desc {
		sign = -1
	}

	switch field {
	case FieldID:
		return func(a, b *model.CoinRecord) int { return sign * a.ID.Compare(b.ID) }
	case FieldName:
		return func(a, b *model.CoinRecord) int { return sign * strings.Compare(a.Name, b.Name) }
	case FieldSymbol:
		return func(a, b *model.CoinRecord) int { return sign * strings.Compare(a.Symbol, b.Symbol) }
	}

	value := quantityOf(field)
	return func(a, b *model.CoinRecord) int {
		qa, qb := value(a), value(b)
		switch {
		case qa.IsMissing() && qb.IsMissing():
			return 0
		case qa.IsMissing():
			return 1
		case qb.IsMissing():
			return -1
		}
		return sign * qa.Compare(qb)
	}
}

// Compare exposes the ordering used by Run for a field and direction.
func Compare(field SortField, dir Direction, a, b model.CoinRecord) int {
	return comparator(ParseSortField(string(field)), ParseDirection(string(dir)))(&a, &b)
}

func quantityOf(field SortField) func(*model.CoinRecord) model.Quantity {
	switch field {
	case FieldPrice:
		return func(r *model.CoinRecord) model.Quantity { return r.Price }
	case FieldPercentChange1h:
		return func(r *model.CoinRecord) model.Quantity { return r.PercentChange1h }
	case FieldPercentChange24h:
		return func(r *model.CoinRecord) model.Quantity { return r.PercentChange24h }
	case FieldPercentChange7d:
		return func(r *model.CoinRecord) model.Quantity { return r.PercentChange7d }
	default:
		return func(r *model.CoinRecord) model.Quantity { return r.MarketCap }
	}
}
