package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcexport/internal/fetcher"
	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/storage"
)

var counterpart = hipchat.User{
	ID:          "2",
	Name:        "Bob Jones",
	MentionName: "bob",
	Email:       "bob@example.com",
}

func testPage(raw string, items ...hipchat.Message) *hipchat.HistoryPage {
	return &hipchat.HistoryPage{Index: 0, Items: items, Raw: json.RawMessage(raw)}
}

func TestWritePageSnapshotAndTranscript(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(storage.NewManager(root), true, logger.NewTestLogger())

	raw := `{"startIndex": 0, "items": [{"message": "grüß dich"}], "maxResults": 1000}`
	page := testPage(raw, hipchat.Message{
		ID:      "m1",
		Date:    "2017-05-01T12:00:00.000000+00:00",
		From:    hipchat.Sender{Name: "Bob Jones", MentionName: "bob"},
		Message: "grüß dich",
	})

	require.NoError(t, w.WritePage(counterpart, page, nil))

	dir := filepath.Join(root, "Bob Jones")
	snapshot, err := os.ReadFile(filepath.Join(dir, "Bob Jones_0.json"))
	require.NoError(t, err)

	// The snapshot is valid JSON equivalent to the raw response
	var roundTrip map[string]interface{}
	require.NoError(t, json.Unmarshal(snapshot, &roundTrip))
	assert.Contains(t, roundTrip, "items")

	// Stable key order, four-space indent, non-ASCII preserved
	text := string(snapshot)
	assert.Less(t, strings.Index(text, `"items"`), strings.Index(text, `"maxResults"`))
	assert.Less(t, strings.Index(text, `"maxResults"`), strings.Index(text, `"startIndex"`))
	assert.Contains(t, text, "    \"items\"")
	assert.Contains(t, text, "grüß")
	assert.NotContains(t, text, `\u`)

	transcript, err := os.ReadFile(filepath.Join(dir, "Bob Jones_0.html"))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "grüß dich")
}

func TestWritePageSkipsSnapshotWhenDisabled(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(storage.NewManager(root), false, logger.NewTestLogger())

	page := testPage(`{"items": []}`, hipchat.Message{
		ID:   "m1",
		Date: "2017-05-01T12:00:00Z",
		From: hipchat.Sender{MentionName: "bob"},
	})
	require.NoError(t, w.WritePage(counterpart, page, nil))

	dir := filepath.Join(root, "Bob Jones")
	_, err := os.Stat(filepath.Join(dir, "Bob Jones_0.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "Bob Jones_0.html"))
	assert.NoError(t, err)
}

func TestTranscriptAuthorSides(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(storage.NewManager(root), false, logger.NewTestLogger())

	page := testPage(`{}`,
		hipchat.Message{
			ID:      "m1",
			Date:    "2017-05-01T12:00:00Z",
			From:    hipchat.Sender{Name: "Alice Smith", MentionName: "alice"},
			Message: "mine",
		},
		hipchat.Message{
			ID:      "m2",
			Date:    "2017-05-01T12:01:00Z",
			From:    hipchat.Sender{Name: "Bob Jones", MentionName: "bob"},
			Message: "theirs",
		},
		// Notification sender: a bare string in the payload, no mention name
		// matching the counterpart, so it renders on the owner's side
		hipchat.Message{
			ID:      "m3",
			Date:    "2017-05-01T12:02:00Z",
			From:    hipchat.Sender{Name: "GitHub", MentionName: "GitHub"},
			Message: "build passed",
		},
	)
	require.NoError(t, w.WritePage(counterpart, page, nil))

	transcript, err := os.ReadFile(filepath.Join(root, "Bob Jones", "Bob Jones_0.html"))
	require.NoError(t, err)
	html := string(transcript)

	assert.Equal(t, 2, strings.Count(html, `class="message own"`))
	assert.Equal(t, 1, strings.Count(html, `class="message">`))
	assert.Contains(t, html, "12:00:00")
	assert.Contains(t, html, "05/01/2017")
}

func TestTranscriptAttachmentRendering(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(storage.NewManager(root), false, logger.NewTestLogger())

	page := testPage(`{}`,
		hipchat.Message{
			ID:   "m1",
			Date: "2017-05-01T12:00:00Z",
			From: hipchat.Sender{MentionName: "bob"},
			File: &hipchat.FileRef{Name: "shot.png"},
		},
		hipchat.Message{
			ID:   "m2",
			Date: "2017-05-01T12:01:00Z",
			From: hipchat.Sender{MentionName: "bob"},
			File: &hipchat.FileRef{Name: "notes.pdf"},
		},
	)
	attachments := map[string]fetcher.Attachment{
		"m1": {Name: "shot.png", Inline: true},
		"m2": {Name: "notes.pdf", Inline: false},
	}
	require.NoError(t, w.WritePage(counterpart, page, attachments))

	transcript, err := os.ReadFile(filepath.Join(root, "Bob Jones", "Bob Jones_0.html"))
	require.NoError(t, err)
	html := string(transcript)

	assert.Contains(t, html, `<img src="shot.png"`)
	assert.Contains(t, html, `<a href="notes.pdf">notes.pdf</a>`)
	assert.NotContains(t, html, `<img src="notes.pdf"`)
}

func TestTranscriptFallsBackToRawDate(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(storage.NewManager(root), false, logger.NewTestLogger())

	page := testPage(`{}`, hipchat.Message{
		ID:      "m1",
		Date:    "not-a-timestamp",
		From:    hipchat.Sender{MentionName: "bob"},
		Message: "hello",
	})
	require.NoError(t, w.WritePage(counterpart, page, nil))

	transcript, err := os.ReadFile(filepath.Join(root, "Bob Jones", "Bob Jones_0.html"))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "not-a-timestamp")
}
