package collab

import "context"

// DataProvider writes CSV files conforming to the schemas in internal/data into
// a data directory, keeping manifest.json in sync (spec §6). Concrete DefiLlama/
// Hyperliquid fetchers are out of scope (spec §1); this is the seam a live
// deployment's fetch-and-replay loop would implement against.
type DataProvider interface {
	// RefreshDataDir fetches current market data for every (kind, symbol) pair
	// it's configured for and writes it into dir, updating manifest.json.
	RefreshDataDir(ctx context.Context, dir string) error
}
