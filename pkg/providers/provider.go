// Package providers contains the adapters for the external mention sources.
// Each adapter turns a list of search queries and a cutoff timestamp into
// mentions; the orchestrator runs them concurrently and isolates failures.
package providers

import (
	"context"
	"errors"
	"time"

	"mentionscan/pkg/domain"
)

// Provider is one external data source.
type Provider interface {
	// Name is the stable provider label used in logs and metrics.
	Name() string
	// Fetch returns mentions for the given queries published at or after
	// cutoff. Implementations apply their own date filtering to the extent
	// the upstream allows.
	Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error)
}

// ErrQuotaExhausted marks a provider quota or rate-limit rejection; the
// caller must not retry the call.
var ErrQuotaExhausted = errors.New("provider quota exhausted")
