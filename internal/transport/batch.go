package transport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one batch member.
type Result struct {
	Body []byte
	Err  error
}

// Batch runs every request through Do with at most limit in flight and
// returns results in input order. A failing member never cancels the others.
func (c *Client) Batch(ctx context.Context, reqs []Request, limit int) []Result {
	results := make([]Result, len(reqs))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			body, err := c.Do(ctx, req)
			results[i] = Result{Body: body, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
