package query

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/coinfeed/internal/model"
)

func coin(id int64, name, symbol, marketCap string) model.CoinRecord {
	r := model.CoinRecord{ID: model.NumericID(id), Name: name, Symbol: symbol}
	if marketCap != "" {
		r.MarketCap = model.MustQuantity(marketCap)
	}
	return r
}

func snapshotOf(records ...model.CoinRecord) *model.Snapshot {
	snap, _ := model.NewSnapshot(records, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return snap
}

func symbols(items []model.CoinRecord) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.Symbol
	}
	return out
}

func TestRun_MarketCapDescFirstPage(t *testing.T) {
	snap := snapshotOf(
		coin(1, "Alpha", "A", "500"),
		coin(2, "Bravo", "B", "1000"),
		coin(3, "Charlie", "C", "1500"),
	)

	res := NewEngine(DefaultConfig()).Run(snap, Params{
		SortBy:    FieldMarketCap,
		Direction: Desc,
		Page:      1,
		Limit:     2,
	})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"C", "B"}, symbols(res.Items))
	assert.Equal(t, 2, res.TotalPages())
}

func TestRun_MissingSortsLastInBothDirections(t *testing.T) {
	missing := model.CoinRecord{ID: model.NumericID(1), Name: "Missing", Symbol: "MISS"}
	negative := model.CoinRecord{ID: model.NumericID(2), Name: "Negative", Symbol: "NEG", PercentChange24h: model.MustQuantity("-5.0")}
	zero := model.CoinRecord{ID: model.NumericID(3), Name: "Zero", Symbol: "ZERO", PercentChange24h: model.MustQuantity("0")}
	snap := snapshotOf(missing, negative, zero)

	e := NewEngine(DefaultConfig())

	desc := e.Run(snap, Params{SortBy: FieldPercentChange24h, Direction: Desc})
	assert.Equal(t, []string{"ZERO", "NEG", "MISS"}, symbols(desc.Items))

	asc := e.Run(snap, Params{SortBy: FieldPercentChange24h, Direction: Asc})
	assert.Equal(t, []string{"NEG", "ZERO", "MISS"}, symbols(asc.Items))
}

func TestRun_SearchNoMatch(t *testing.T) {
	snap := snapshotOf(coin(1, "Bitcoin", "BTC", "1"), coin(2, "Ethereum", "ETH", "2"))

	res := NewEngine(DefaultConfig()).Run(snap, Params{Search: "zzz"})

	assert.Equal(t, 0, res.Total)
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestRun_SearchCaseInsensitiveNameOrSymbol(t *testing.T) {
	snap := snapshotOf(
		coin(1, "Bitcoin", "BTC", "3"),
		coin(2, "Wrapped Bitcoin", "WBTC", "2"),
		coin(3, "Ethereum", "ETH", "1"),
		coin(4, "Tether", "USDT", "4"),
	)
	e := NewEngine(DefaultConfig())

	res := e.Run(snap, Params{Search: "bItCoIn"})
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"BTC", "WBTC"}, symbols(res.Items))

	// "eth" matches ETH by symbol and Tether by name.
	res = e.Run(snap, Params{Search: "  eth "})
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"USDT", "ETH"}, symbols(res.Items))
}

func TestRun_Pagination(t *testing.T) {
	var records []model.CoinRecord
	for i := int64(1); i <= 7; i++ {
		records = append(records, coin(i, "Coin", string(rune('A'+i-1)), "1"))
	}
	snap := snapshotOf(records...)
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name      string
		page      int
		limit     int
		wantSyms  []string
		wantPage  int
		wantLimit int
	}{
		{"first page", 1, 3, []string{"A", "B", "C"}, 1, 3},
		{"last partial page", 3, 3, []string{"G"}, 3, 3},
		{"past the end", 4, 3, []string{}, 4, 3},
		{"page zero becomes one", 0, 3, []string{"A", "B", "C"}, 1, 3},
		{"negative page becomes one", -5, 3, []string{"A", "B", "C"}, 1, 3},
		{"zero limit uses default", 1, 0, []string{"A", "B", "C", "D", "E", "F", "G"}, 1, DefaultLimit},
		{"huge page", 1 << 40, 3, []string{}, 1 << 40, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Equal market caps keep upstream order under a stable sort.
			res := e.Run(snap, Params{Page: tt.page, Limit: tt.limit})
			assert.Equal(t, 7, res.Total)
			assert.Equal(t, tt.wantSyms, symbols(res.Items))
			assert.Equal(t, tt.wantPage, res.Page)
			assert.Equal(t, tt.wantLimit, res.Limit)
		})
	}
}

func TestRun_MaxLimit(t *testing.T) {
	snap := snapshotOf(coin(1, "A", "A", "1"), coin(2, "B", "B", "2"), coin(3, "C", "C", "3"))

	res := NewEngine(Config{DefaultLimit: 1, MaxLimit: 2}).Run(snap, Params{Limit: 100})
	assert.Equal(t, 2, res.Limit)
	assert.Len(t, res.Items, 2)
}

func TestRun_HugeLimitWithoutMaxLimit(t *testing.T) {
	snap := snapshotOf(
		coin(1, "Alpha", "A", "500"),
		coin(2, "Bravo", "B", "1000"),
	)

	res := NewEngine(Config{DefaultLimit: 30}).Run(snap, Params{Page: 1, Limit: math.MaxInt})

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.TotalPages())
	assert.Equal(t, []string{"B", "A"}, symbols(res.Items))

	res = NewEngine(Config{DefaultLimit: 30}).Run(snap, Params{Page: 2, Limit: math.MaxInt})
	assert.Empty(t, res.Items)
}

func TestRun_StringAndIDSorts(t *testing.T) {
	snap := snapshotOf(
		coin(10, "bitcoin", "btc", "1"),
		coin(9, "Bitcoin", "BTC", "1"),
		coin(100, "Aave", "AAVE", "1"),
	)
	e := NewEngine(DefaultConfig())

	// Case-sensitive: uppercase sorts before lowercase.
	res := e.Run(snap, Params{SortBy: FieldName, Direction: Asc})
	assert.Equal(t, []string{"AAVE", "BTC", "btc"}, symbols(res.Items))

	// Numeric IDs compare as numbers, not strings.
	res = e.Run(snap, Params{SortBy: FieldID, Direction: Asc})
	assert.Equal(t, []string{"BTC", "btc", "AAVE"}, symbols(res.Items))
}

func TestRun_DoesNotMutateSnapshot(t *testing.T) {
	snap := snapshotOf(coin(1, "A", "A", "1"), coin(2, "B", "B", "2"), coin(3, "C", "C", "3"))
	before := snap.Records()

	res := NewEngine(DefaultConfig()).Run(snap, Params{SortBy: FieldMarketCap, Direction: Desc})
	res.Items[0].Name = "changed"

	assert.Equal(t, before, snap.Records())
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{
			name:  "empty",
			query: "",
			want:  Params{SortBy: FieldMarketCap, Direction: Desc},
		},
		{
			name:  "all set",
			query: "page=2&limit=50&sortBy=price&sortDirection=asc&search=btc",
			want:  Params{Search: "btc", SortBy: FieldPrice, Direction: Asc, Page: 2, Limit: 50},
		},
		{
			name:  "snake case alias",
			query: "sortBy=percent_change_24h&sortDirection=DESC",
			want:  Params{SortBy: FieldPercentChange24h, Direction: Desc},
		},
		{
			name:  "garbage",
			query: "page=abc&limit=1.5&sortBy=volume&sortDirection=sideways",
			want:  Params{SortBy: FieldMarketCap, Direction: Desc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseParams(v))
		})
	}
}

func TestParamsNormalize(t *testing.T) {
	got := Params{Search: "  x ", SortBy: "bogus", Direction: "", Page: -1, Limit: -1}.Normalize(Config{DefaultLimit: 25})

	assert.Equal(t, Params{Search: "x", SortBy: FieldMarketCap, Direction: Desc, Page: 1, Limit: 25}, got)
}
