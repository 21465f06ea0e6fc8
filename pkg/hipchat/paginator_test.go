package hipchat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/logger"
)

func historyBody(next string, messages ...Message) string {
	if messages == nil {
		messages = []Message{}
	}
	env := map[string]interface{}{
		"items": messages,
		"links": map[string]string{"next": next},
	}
	data, _ := json.Marshal(env)
	return string(data)
}

func msg(id, date, text string) Message {
	return Message{ID: id, Date: date, From: Sender{Name: "Alice"}, Message: text}
}

func drain(t *testing.T, p *HistoryPaginator) []*HistoryPage {
	t.Helper()
	var pages []*HistoryPage
	for p.Next() {
		pages = append(pages, p.Page())
	}
	return pages
}

func TestPaginatorFollowsNextLinks(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("page") == "2":
			fmt.Fprint(w, historyBody("", msg("m3", "2017-05-01T12:02:00Z", "three")))
		default:
			next := server.URL + "/v2/user/42/history?page=2"
			fmt.Fprint(w, historyBody(next,
				msg("m1", "2017-05-01T12:00:00Z", "one"),
				msg("m2", "2017-05-01T12:01:00Z", "two")))
		}
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 1000, logger.NewTestLogger())
	pages := drain(t, pager)

	require.NoError(t, pager.Err())
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, 1, pages[1].Index)
	assert.Len(t, pages[0].Items, 2)
	assert.Len(t, pages[1].Items, 1)
	assert.Equal(t, "m1", pages[0].Items[0].ID)
	assert.Equal(t, "m3", pages[1].Items[0].ID)
}

func TestPaginatorSeedsAscendingQuery(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, historyBody(""))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 500, logger.NewTestLogger())
	drain(t, pager)

	require.NoError(t, pager.Err())
	assert.Equal(t, "false", gotQuery["reverse"][0])
	assert.Equal(t, "500", gotQuery["max-results"][0])
	assert.NotEmpty(t, gotQuery["date"][0])
}

func TestPaginatorEmptyHistoryYieldsNoPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historyBody(""))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 1000, logger.NewTestLogger())
	pages := drain(t, pager)

	assert.Empty(t, pages)
	assert.NoError(t, pager.Err())
}

func TestPaginatorMissingItemsIsUsageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "token invalid"}`)
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 1000, logger.NewTestLogger())
	pages := drain(t, pager)

	assert.Empty(t, pages)
	require.Error(t, pager.Err())
	assert.True(t, apierrors.IsUsage(pager.Err()))
}

func TestPaginatorDateCursorFallback(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		queries = append(queries, date)
		switch len(queries) {
		case 1:
			// Full page without a next link forces the date-cursor reissue
			fmt.Fprint(w, historyBody("",
				msg("m1", "2017-05-01T12:00:00Z", "one"),
				msg("m2", "2017-05-01T12:01:00Z", "two")))
		case 2:
			// The reissued query re-fetches the boundary message
			fmt.Fprint(w, historyBody("",
				msg("m2", "2017-05-01T12:01:00Z", "two"),
				msg("m3", "2017-05-01T12:02:00Z", "three")))
		default:
			fmt.Fprint(w, historyBody("", msg("m3", "2017-05-01T12:02:00Z", "three")))
		}
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 2, logger.NewTestLogger())
	pages := drain(t, pager)

	require.NoError(t, pager.Err())
	require.Len(t, pages, 2)

	// Reissued query uses the last message's date verbatim
	require.Len(t, queries, 3)
	assert.Equal(t, "2017-05-01T12:01:00Z", queries[1])

	// The boundary duplicate is dropped
	require.Len(t, pages[1].Items, 1)
	assert.Equal(t, "m3", pages[1].Items[0].ID)

	var all []string
	for _, page := range pages {
		for _, m := range page.Items {
			all = append(all, m.ID)
		}
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, all)
}

func TestPaginatorTerminatesWhenCursorMakesNoProgress(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		// The reissued cursor query keeps returning only the boundary
		// message: without dedup-and-stop this loops forever
		fmt.Fprint(w, historyBody("", msg("m1", "2017-05-01T12:00:00Z", "one")))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	pager := NewHistoryPaginator(client, server.URL, "token", "42", 1, logger.NewTestLogger())
	pages := drain(t, pager)

	require.NoError(t, pager.Err())
	assert.Equal(t, 2, count)
	require.Len(t, pages, 1)
	assert.Equal(t, "m1", pages[0].Items[0].ID)
}
