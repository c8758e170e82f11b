// Package api provides the CoinMarketCap REST client used to ingest listings.
//
// REST endpoints:
//   - Production: https://pro-api.coinmarketcap.com
//   - Sandbox: https://sandbox-api.coinmarketcap.com
//
// Key endpoint: GET /v1/cryptocurrency/listings/latest (offset paginated,
// authenticated with the X-CMC_PRO_API_KEY header).
package api
