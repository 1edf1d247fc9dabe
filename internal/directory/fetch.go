package directory

import (
	"context"
	"fmt"
	"log/slog"
)

// PageSize is the fixed number of records requested per page.
const PageSize = 50

// PageSource returns one page of records. Implemented by *Client.
type PageSource interface {
	ListUsers(ctx context.Context, token string, page, perPage int) ([]Record, error)
}

// Fetcher performs the paginated sweep that produces a complete Roster.
type Fetcher struct {
	source PageSource
	logger *slog.Logger
}

// NewFetcher creates a fetcher reading from source.
func NewFetcher(source PageSource, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{source: source, logger: logger}
}

// FetchAll requests pages 0, 1, 2, ... until a page comes back shorter than
// PageSize (an empty page counts as short). The source does not report a
// total, so the short page is the only termination signal. When the total
// is an exact multiple of PageSize the final request returns an empty page;
// that is normal.
//
// The fetch is all-or-nothing: any failure returns a FETCH error and a nil
// roster. pages is the number of page requests issued.
func (f *Fetcher) FetchAll(ctx context.Context, token string) (roster Roster, pages int, err error) {
	var acc Roster
	seen := make(map[string]int)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, pages, NewFetchError("fetch cancelled", err)
		}

		records, err := f.source.ListUsers(ctx, token, page, PageSize)
		pages++
		if err != nil {
			return nil, pages, NewFetchError(fmt.Sprintf("fetch page %d", page), err)
		}

		for _, rec := range records {
			if prev, dup := seen[rec.ID]; dup {
				// Pages overlapped: the directory changed mid-sweep.
				return nil, pages, NewFetchError(
					fmt.Sprintf("record %q returned on page %d and again on page %d", rec.ID, prev, page), nil)
			}
			seen[rec.ID] = page
		}
		acc = append(acc, records...)

		f.logger.Debug("fetched page", "page", page, "records", len(records), "total", len(acc))

		if len(records) != PageSize {
			break
		}
	}

	f.logger.Info("roster fetched", "pages", pages, "records", len(acc))
	return acc, pages, nil
}
