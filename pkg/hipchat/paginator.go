package hipchat

import (
	"time"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/logger"
)

// HistoryPaginator walks one user's 1:1 history as a lazy, finite sequence
// of pages. It is not restartable: each paginator starts a fresh cursor at
// the current UTC instant. Usage follows the scanner pattern:
//
//	pager := NewHistoryPaginator(client, baseURL, token, userID, pageSize, log)
//	for pager.Next() {
//		page := pager.Page()
//		...
//	}
//	if err := pager.Err(); err != nil { ... }
type HistoryPaginator struct {
	client   *Client
	baseURL  string
	token    string
	userID   string
	pageSize int
	log      logger.Logger

	url            string
	index          int
	done           bool
	fromDateCursor bool
	lastID         string
	lastDate       string

	page *HistoryPage
	err  error
}

// NewHistoryPaginator seeds a paginator at the current UTC instant, in
// ascending order, with the given page-size ceiling.
func NewHistoryPaginator(client *Client, baseURL, token, userID string, pageSize int, log logger.Logger) *HistoryPaginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = logger.GetLogger()
	}
	seed := time.Now().UTC().Format(time.RFC3339)
	return &HistoryPaginator{
		client:   client,
		baseURL:  baseURL,
		token:    token,
		userID:   userID,
		pageSize: pageSize,
		log:      log,
		url:      HistoryURL(baseURL, userID, seed, pageSize),
	}
}

// Next fetches the next page. It returns false when the history is
// exhausted or an error occurred; check Err afterwards.
func (p *HistoryPaginator) Next() bool {
	for {
		if p.done || p.err != nil {
			return false
		}

		p.log.DebugWithFields("fetching history page", map[string]interface{}{
			"user_id": p.userID,
			"url":     p.url,
		})

		var env historyEnvelope
		raw, err := p.client.GetJSON(p.url, p.token, &env)
		if err != nil {
			p.err = err
			p.done = true
			return false
		}

		// A response without an items field means the token is invalid or
		// the payload is malformed. Stop, do not retry.
		if env.Items == nil {
			p.err = apierrors.Usage("could not find messages in API return data; check your token and try again")
			p.done = true
			return false
		}

		cameFromDateCursor := p.fromDateCursor
		fetched := *env.Items
		items := fetched

		// The date-cursor lower bound is inclusive on the remote side, so a
		// reissued query re-fetches the boundary message. Drop leading items
		// already yielded on the previous page.
		if cameFromDateCursor {
			for len(items) > 0 && p.seen(items[0]) {
				items = items[1:]
			}
		}

		if n := len(fetched); n > 0 {
			p.lastID = fetched[n-1].ID
			p.lastDate = fetched[n-1].Date
		}

		// Advance the cursor: a "next" link is followed verbatim; without
		// one, a full page falls back to a date-cursor reissue because not
		// every deployment returns the link.
		switch {
		case env.Links.Next != "":
			p.url = env.Links.Next
			p.fromDateCursor = false
		case len(fetched) == p.pageSize && p.lastDate != "":
			p.url = HistoryURL(p.baseURL, p.userID, p.lastDate, p.pageSize)
			p.fromDateCursor = true
		default:
			p.done = true
		}

		// An empty page yields nothing. In particular a user with no
		// history at all produces zero pages, so no output directory is
		// ever created for them. A date-cursor reissue that surfaced no new
		// items made no progress and must terminate rather than loop.
		if len(items) == 0 {
			if p.done || cameFromDateCursor {
				p.done = true
				return false
			}
			continue
		}

		p.page = &HistoryPage{Index: p.index, Items: items, Raw: raw}
		p.index++
		return true
	}
}

func (p *HistoryPaginator) seen(m Message) bool {
	if m.ID != "" && p.lastID != "" {
		return m.ID == p.lastID
	}
	return m.Date != "" && m.Date == p.lastDate
}

// Page returns the page fetched by the last successful Next call.
func (p *HistoryPaginator) Page() *HistoryPage {
	return p.page
}

// Err returns the first error encountered while paginating.
func (p *HistoryPaginator) Err() error {
	return p.err
}
