// Package fetcher downloads remote listing photos so they can be shown to the
// vision tier.
package fetcher

import (
	"context"
)

// Fetcher retrieves a remote image.
type Fetcher interface {
	// Fetch downloads url and returns the body. Only http and https URLs are
	// accepted.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
