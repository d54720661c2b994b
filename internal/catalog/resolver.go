package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/isbn"
)

// DefaultTimeout bounds each catalog attempt
const DefaultTimeout = 8 * time.Second

// Resolver queries a primary catalog, then a secondary catalog, then the
// secondary again with the 10-digit form of a 978 identifier. Attempts run
// one after another and the first match wins.
type Resolver struct {
	primary   Catalog
	secondary Catalog
	timeout   time.Duration
}

// NewResolver creates a Resolver. A non-positive timeout uses DefaultTimeout.
func NewResolver(primary, secondary Catalog, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
	}
}

type attempt struct {
	catalog Catalog
	query   string
}

// Resolve normalizes and validates raw, then walks the attempt chain. A
// malformed identifier fails with KindInvalidFormat before any catalog is
// contacted. Exhausting the chain is not an error: the result has Found false.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Result, error) {
	id := isbn.Normalize(raw)
	if !isbn.Valid(id) {
		return Result{}, apperrors.New(apperrors.KindInvalidFormat,
			"That doesn't look like an ISBN. Enter 10 or 13 digits.",
			fmt.Errorf("invalid isbn %q", raw))
	}

	chain := []attempt{
		{r.primary, id},
		{r.secondary, id},
	}
	if short, ok := isbn.ConvertTo10(id); ok {
		chain = append(chain, attempt{r.secondary, short})
	}

	for _, a := range chain {
		if a.catalog == nil {
			continue
		}
		md, err := r.lookup(ctx, a.catalog, a.query)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			slog.Warn("Catalog lookup failed", "catalog", a.catalog.Name(), "isbn", a.query, "error", err)
			continue
		}
		if md == nil {
			slog.Info("Catalog has no match", "catalog", a.catalog.Name(), "isbn", a.query)
			continue
		}
		slog.Info("Catalog matched", "catalog", a.catalog.Name(), "isbn", a.query)
		return found(id, a.catalog.Name(), a.query, md), nil
	}

	return Result{Found: false, ISBN: id}, nil
}

type lookupReply struct {
	md  *Metadata
	err error
}

// lookup waits at most r.timeout for c to answer. The call itself is not
// cancelled on timeout; its late reply lands in a buffered channel nobody reads.
func (r *Resolver) lookup(ctx context.Context, c Catalog, id string) (*Metadata, error) {
	replies := make(chan lookupReply, 1)
	go func() {
		md, err := c.Lookup(ctx, id)
		replies <- lookupReply{md: md, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		return reply.md, reply.err
	case <-timer.C:
		return nil, apperrors.New(apperrors.KindTimeout,
			fmt.Sprintf("%s did not answer in time", c.Name()),
			fmt.Errorf("lookup exceeded %s", r.timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
