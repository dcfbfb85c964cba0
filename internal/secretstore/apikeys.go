package secretstore

import "context"

// APIKeys is the subset of the API-keys secret bundle the worker
// consumes (spec.md §6): ALPACA_API_KEY/ALPACA_API_SECRET for the fast
// feed, MASSIVE_API_KEY for the delayed feed and REST client.
type APIKeys struct {
	AlpacaKey    string
	AlpacaSecret string
	MassiveKey   string
}

// LoadAPIKeys fetches and extracts the worker's API-key bundle from arn.
// Repeated calls with the same arn hit the cache's per-ARN memoization,
// so scheduler and each RealtimeFeed can independently call this on
// first use without duplicating the fetch (spec.md §5's "first
// getApiKey* call" cache rule).
func LoadAPIKeys(ctx context.Context, cache *Cache, arn string) (APIKeys, error) {
	values, err := cache.Get(ctx, arn)
	if err != nil {
		return APIKeys{}, err
	}
	return APIKeys{
		AlpacaKey:    values["ALPACA_API_KEY"],
		AlpacaSecret: values["ALPACA_API_SECRET"],
		MassiveKey:   values["MASSIVE_API_KEY"],
	}, nil
}
