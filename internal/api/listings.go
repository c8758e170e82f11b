package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const listingsPath = "/v1/cryptocurrency/listings/latest"

// StatusError is returned when upstream answers with a non-zero error_code.
type StatusError struct {
	Code    int64
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coinmarketcap status %d: %s", e.Code, e.Message)
}

// GetListings fetches one page of latest listings. start is 1-based.
func (c *Client) GetListings(ctx context.Context, start, limit int) (*ListingsPage, error) {
	query := url.Values{}
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("convert", c.convert)

	body, err := c.doRequest(ctx, http.MethodGet, listingsPath, query)
	if err != nil {
		return nil, fmt.Errorf("get listings start=%d: %w", start, err)
	}

	page, err := parseListingsPage(body)
	if err != nil {
		return nil, fmt.Errorf("get listings start=%d: %w", start, err)
	}

	return page, nil
}

// FetchAllListings runs one sweep: it requests pages until upstream returns a
// short page. Any failed page fails the whole sweep and nothing accumulated so
// far is returned.
func (c *Client) FetchAllListings(ctx context.Context) ([]RawListing, error) {
	var all []RawListing
	start := 1
	begin := time.Now()

	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w (%d pages of %d)", ErrTooManyPages, c.maxPages, c.pageSize)
		}

		resp, err := c.fetchPage(ctx, start)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Listings...)

		c.logger.Debug("fetched listings page",
			"page", page,
			"start", start,
			"records", len(resp.Listings),
			"credits", resp.Status.CreditCount,
		)

		if len(resp.Listings) < c.pageSize {
			break
		}
		start += c.pageSize
	}

	c.logger.Debug("listings sweep fetched",
		"records", len(all),
		"duration", time.Since(begin),
	)

	return all, nil
}

// fetchPage bounds a single page request by the page timeout.
func (c *Client) fetchPage(ctx context.Context, start int) (*ListingsPage, error) {
	pageCtx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	return c.GetListings(pageCtx, start, c.pageSize)
}

func parseListingsPage(body []byte) (*ListingsPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid json", ErrMalformedResponse)
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}

	status := parseStatus(root.Get("status"))
	if status.ErrorCode != 0 {
		return nil, &StatusError{Code: status.ErrorCode, Message: status.ErrorMessage}
	}

	data := root.Get("data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: data is not an array", ErrMalformedResponse)
	}

	items := data.Array()
	listings := make([]RawListing, 0, len(items))
	for _, item := range items {
		listings = append(listings, RawListing(item.Raw))
	}

	return &ListingsPage{Status: status, Listings: listings}, nil
}

func parseStatus(s gjson.Result) Status {
	return Status{
		Timestamp:    s.Get("timestamp").String(),
		ErrorCode:    s.Get("error_code").Int(),
		ErrorMessage: s.Get("error_message").String(),
		CreditCount:  s.Get("credit_count").Int(),
	}
}
