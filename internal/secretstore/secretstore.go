// Package secretstore defines the client contract for the upstream secret
// store (spec.md §6): getSecret(arn) -> stringified JSON mapping names
// such as ALPACA_API_KEY, ALPACA_API_SECRET, MASSIVE_API_KEY, token, and
// password to values. The secret store itself is an external
// collaborator (spec.md §1); this package only consumes its contract.
package secretstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Store fetches a secret's value map by ARN.
type Store interface {
	GetSecret(ctx context.Context, arn string) (map[string]string, error)
}

// httpStore implements Store against a generic secret-manager HTTP
// endpoint; it fetches on every call (memoisation is Cache's job). It is
// intentionally thin: the secret store is an external collaborator, not
// part of this spec's implementation surface.
type httpStore struct {
	client *resty.Client
}

// New creates a Store backed by an HTTP secret-manager endpoint. baseURL
// is the root of the secret-fetch API the operator's deployment exposes
// (e.g. an internal secrets-manager proxy).
func New(baseURL string) Store {
	c := resty.New().SetBaseURL(baseURL)
	return &httpStore{client: c}
}

func (s *httpStore) GetSecret(ctx context.Context, arn string) (map[string]string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("arn", arn).
		Get("/secret")
	if err != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", arn, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching secret %s: status %d", arn, resp.StatusCode())
	}

	var values map[string]string
	if err := json.Unmarshal(resp.Body(), &values); err != nil {
		return nil, fmt.Errorf("parsing secret %s: %w", arn, err)
	}
	return values, nil
}
