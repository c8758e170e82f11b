package query

import (
	"net/url"
	"strconv"
	"strings"
)

// SortField names a CoinRecord field that results can be ordered by.
type SortField string

const (
	FieldID               SortField = "id"
	FieldName             SortField = "name"
	FieldSymbol           SortField = "symbol"
	FieldPrice            SortField = "price"
	FieldMarketCap        SortField = "marketCap"
	FieldPercentChange1h  SortField = "percentChange1h"
	FieldPercentChange24h SortField = "percentChange24h"
	FieldPercentChange7d  SortField = "percentChange7d"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Defaults applied to missing or invalid parameters.
const (
	DefaultLimit     = 30
	DefaultMaxLimit  = 5000
	DefaultSortField = FieldMarketCap
	DefaultDirection = Desc
)

// sortAliases maps lowercased request values to fields. The snake_case forms
// match the record's JSON keys.
var sortAliases = map[string]SortField{
	"id":                 FieldID,
	"name":               FieldName,
	"symbol":             FieldSymbol,
	"price":              FieldPrice,
	"marketcap":          FieldMarketCap,
	"market_cap":         FieldMarketCap,
	"percentchange1h":    FieldPercentChange1h,
	"percent_change_1h":  FieldPercentChange1h,
	"percentchange24h":   FieldPercentChange24h,
	"percent_change_24h": FieldPercentChange24h,
	"percentchange7d":    FieldPercentChange7d,
	"percent_change_7d":  FieldPercentChange7d,
}

// Params is one query request.
type Params struct {
	Search    string
	SortBy    SortField
	Direction Direction
	Page      int // 1-based
	Limit     int
}

// Config bounds page sizes.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: DefaultLimit,
		MaxLimit:     DefaultMaxLimit,
	}
}

// ParseSortField resolves a field name or alias, falling back to marketCap.
func ParseSortField(s string) SortField {
	if f, ok := sortAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f
	}
	return DefaultSortField
}

// ParseDirection resolves "asc" or "desc", falling back to desc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return DefaultDirection
}

// ParseParams reads query-string parameters. It never fails: anything
// unparseable is left for Normalize to replace with a default.
func ParseParams(v url.Values) Params {
	page, _ := strconv.Atoi(strings.TrimSpace(v.Get("page")))
	limit, _ := strconv.Atoi(strings.TrimSpace(v.Get("limit")))

	return Params{
		Search:    v.Get("search"),
		SortBy:    ParseSortField(v.Get("sortBy")),
		Direction: ParseDirection(v.Get("sortDirection")),
		Page:      page,
		Limit:     limit,
	}
}

// Normalize returns p with every field inside its valid range.
func (p Params) Normalize(cfg Config) Params {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}

	p.Search = strings.TrimSpace(p.Search)
	p.SortBy = ParseSortField(string(p.SortBy))
	p.Direction = ParseDirection(string(p.Direction))

	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && p.Limit > cfg.MaxLimit {
		p.Limit = cfg.MaxLimit
	}

	return p
}
