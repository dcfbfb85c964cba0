// Package objectstore defines the client contract for the companion
// object store that holds news article bodies (spec.md §6): PUT
// bucket/key with a body and an ASCII metadata map. Key layout is
// raw/news/<ticker>/<YYYY-MM-DD>/<id>.json. The object store itself is an
// external collaborator; this package only consumes its contract.
package objectstore

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Store uploads objects to a bucket.
type Store interface {
	// Put uploads body to bucket/key with the given metadata, which must
	// already be ASCII-sanitised by the caller.
	Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error
}

// httpStore implements Store as PUT requests against an S3-compatible
// HTTP endpoint, addressed path-style as /<bucket>/<key>.
type httpStore struct {
	client *resty.Client
}

// New creates a Store backed by an S3-compatible HTTP endpoint.
func New(endpoint string) Store {
	c := resty.New().SetBaseURL(endpoint)
	return &httpStore{client: c}
}

func (s *httpStore) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	req := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetHeader("Content-Type", "application/json")
	for k, v := range metadata {
		req.SetHeader("x-amz-meta-"+k, v)
	}

	resp, err := req.Put(fmt.Sprintf("/%s/%s", bucket, key))
	if err != nil {
		return fmt.Errorf("putting %s/%s: %w", bucket, key, err)
	}
	if resp.IsError() {
		return fmt.Errorf("putting %s/%s: status %d", bucket, key, resp.StatusCode())
	}
	return nil
}
