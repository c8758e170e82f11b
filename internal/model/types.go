package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire format for snapshot timestamps (ISO 8601, ms, UTC).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// PushEvent names the message type on the push channel.
const PushEvent = "cryptoData"

// AssetID is the upstream identifier of an asset. Upstream may send either a
// JSON number or a string; the original form is kept for encoding.
type AssetID struct {
	value   string
	numeric bool
}

// NumericID returns an AssetID for an integer identifier.
func NumericID(n int64) AssetID {
	return AssetID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringID returns an AssetID for a string identifier.
func StringID(s string) AssetID {
	return AssetID{value: s}
}

// RawNumericID returns an AssetID from a JSON number literal.
func RawNumericID(literal string) AssetID {
	return AssetID{value: literal, numeric: true}
}

func (id AssetID) String() string {
	return id.value
}

// Compare orders IDs numerically when both are integers, otherwise by their
// string form.
func (id AssetID) Compare(o AssetID) int {
	if id.numeric && o.numeric {
		a, errA := strconv.ParseInt(id.value, 10, 64)
		b, errB := strconv.ParseInt(o.value, 10, 64)
		if errA == nil && errB == nil {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(id.value, o.value)
}

func (id AssetID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *AssetID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RawNumericID(n.String())
	return nil
}

// CoinRecord is one asset's latest quote.
type CoinRecord struct {
	ID     AssetID `json:"id"`
	Name   string  `json:"name"`
	Symbol string  `json:"symbol"`

	// Quote values in the configured convert currency
	Price            Quantity `json:"price"`
	MarketCap        Quantity `json:"market_cap"`
	PercentChange1h  Quantity `json:"percent_change_1h"`
	PercentChange24h Quantity `json:"percent_change_24h"`
	PercentChange7d  Quantity `json:"percent_change_7d"`

	// Logo URL derived from ID
	ImageRef string `json:"image"`
}

// PushMessage is the payload sent to subscribers of the push channel.
type PushMessage struct {
	Event       string       `json:"event"`
	Data        []CoinRecord `json:"data"`
	LastUpdated string       `json:"lastUpdated"`
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
