package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/rickgao/coinfeed/internal/model"
)

// DefaultImageURLTemplate is the CoinMarketCap static logo path. "{id}" is
// replaced with the asset ID.
const DefaultImageURLTemplate = "https://s2.coinmarketcap.com/static/img/coins/64x64/{id}.png"

// Normalizer maps raw listings onto model.CoinRecord. It holds no state
// beyond its configuration and is safe for concurrent use.
type Normalizer struct {
	convert       string
	imageTemplate string
}

// NewNormalizer creates a Normalizer reading quotes for the given currency.
func NewNormalizer(convert, imageTemplate string) *Normalizer {
	if convert == "" {
		convert = DefaultConvert
	}
	if imageTemplate == "" {
		imageTemplate = DefaultImageURLTemplate
	}
	return &Normalizer{
		convert:       convert,
		imageTemplate: imageTemplate,
	}
}

// Normalize converts one raw listing. Absent or non-numeric quote fields
// become missing; only a missing id, name or symbol rejects the record with
// ErrRecordShape. An empty name or symbol is kept as is.
func (n *Normalizer) Normalize(raw RawListing) (model.CoinRecord, error) {
	if !gjson.ValidBytes(raw) {
		return model.CoinRecord{}, fmt.Errorf("%w: not valid json", ErrRecordShape)
	}
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return model.CoinRecord{}, fmt.Errorf("%w: not an object", ErrRecordShape)
	}

	id, ok := assetID(rec.Get("id"))
	if !ok {
		return model.CoinRecord{}, fmt.Errorf("%w: id", ErrRecordShape)
	}
	name := rec.Get("name")
	if name.Type != gjson.String {
		return model.CoinRecord{}, fmt.Errorf("%w: name (id %s)", ErrRecordShape, id)
	}
	symbol := rec.Get("symbol")
	if symbol.Type != gjson.String {
		return model.CoinRecord{}, fmt.Errorf("%w: symbol (id %s)", ErrRecordShape, id)
	}

	quote := rec.Get("quote").Get(n.convert)

	return model.CoinRecord{
		ID:               id,
		Name:             name.Str,
		Symbol:           symbol.Str,
		Price:            nonNegative(quantity(quote.Get("price"))),
		MarketCap:        nonNegative(quantity(quote.Get("market_cap"))),
		PercentChange1h:  quantity(quote.Get("percent_change_1h")),
		PercentChange24h: quantity(quote.Get("percent_change_24h")),
		PercentChange7d:  quantity(quote.Get("percent_change_7d")),
		ImageRef:         n.ImageRef(id),
	}, nil
}

// NormalizeAll converts a sweep's raw listings in order, dropping records
// that fail Normalize. It returns the kept records and the drop count.
func (n *Normalizer) NormalizeAll(raws []RawListing) ([]model.CoinRecord, int) {
	records := make([]model.CoinRecord, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		r, err := n.Normalize(raw)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, r)
	}
	return records, dropped
}

// ImageRef derives the logo URL for an asset.
func (n *Normalizer) ImageRef(id model.AssetID) string {
	return strings.ReplaceAll(n.imageTemplate, "{id}", id.String())
}

func assetID(v gjson.Result) (model.AssetID, bool) {
	switch v.Type {
	case gjson.Number:
		return model.RawNumericID(v.Raw), true
	case gjson.String:
		if v.Str == "" {
			return model.AssetID{}, false
		}
		return model.StringID(v.Str), true
	}
	return model.AssetID{}, false
}

// quantity reads a JSON number, or a string holding one, without going
// through float64.
func quantity(v gjson.Result) model.Quantity {
	var lit string
	switch v.Type {
	case gjson.Number:
		lit = v.Raw
	case gjson.String:
		lit = strings.TrimSpace(v.Str)
	default:
		return model.Missing()
	}

	d, err := decimal.NewFromString(lit)
	if err != nil {
		return model.Missing()
	}
	return model.QuantityOf(d)
}

func nonNegative(q model.Quantity) model.Quantity {
	if d, ok := q.Decimal(); ok && d.IsNegative() {
		return model.Missing()
	}
	return q
}
