package snapshot

import (
	"bytes"
	"context"
)

// PageRequest asks for one page. A nil Key asks for the first page.
// Offsets are never sent: the staking API treats key and offset as mutually exclusive.
type PageRequest struct {
	Key   []byte
	Limit uint64
}

// Continuation is the pagination trailer of a page. A nil *Continuation means the node sent none.
type Continuation struct {
	NextKey []byte
}

func (c *Continuation) nextKey() ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.NextKey, true
}

// Paginated is implemented by every page that carries a continuation key
type Paginated interface {
	NextKey() (key []byte, present bool)
}

// NextPage builds the request for the page following resp.
// It reports false when the key is absent or empty, which both mean the stream is exhausted.
func NextPage[P Paginated](resp P, limit uint64) (PageRequest, bool) {
	key, present := resp.NextKey()
	if !present || len(key) == 0 {
		return PageRequest{}, false
	}
	return PageRequest{Key: bytes.Clone(key), Limit: limit}, true
}

// Crawl fetches pages starting from the first one until NextPage reports exhaustion.
// Every page is handed to visit before the next one is requested; the first error stops the crawl.
func Crawl[P Paginated](
	ctx context.Context,
	limit uint64,
	fetch func(context.Context, PageRequest) (P, error),
	visit func(P) error,
) error {
	req := PageRequest{Limit: limit}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := fetch(ctx, req)
		if err != nil {
			return err
		}

		if err := visit(page); err != nil {
			return err
		}

		next, ok := NextPage(page, limit)
		if !ok {
			return nil
		}
		req = next
	}
}
