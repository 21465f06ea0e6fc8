package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"hcexport/internal/fetcher"
	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/storage"
)

// Writer persists fetched history pages: an optional raw JSON snapshot plus
// a rendered HTML transcript, both namespaced per counterpart and page index
// so repeated runs never silently merge.
type Writer struct {
	store   *storage.Manager
	rawJSON bool
	log     logger.Logger
}

// NewWriter creates a Writer over the given storage manager.
func NewWriter(store *storage.Manager, rawJSON bool, log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{store: store, rawJSON: rawJSON, log: log}
}

// WritePage writes the artifacts for one page. attachments maps message keys
// to the files already fetched for them.
func (w *Writer) WritePage(counterpart hipchat.User, page *hipchat.HistoryPage, attachments map[string]fetcher.Attachment) error {
	base := fmt.Sprintf("%s_%d", counterpart.Name, page.Index)

	if w.rawJSON {
		snapshot, err := renderSnapshot(page.Raw)
		if err != nil {
			return err
		}
		name := base + ".json"
		w.log.DebugWithFields("writing snapshot", map[string]interface{}{
			"counterpart": counterpart.Name,
			"file":        name,
		})
		if err := w.store.WriteFile(counterpart.Name, name, snapshot); err != nil {
			return &apierrors.Error{Type: apierrors.ErrorTypeFilesystem, Message: err.Error()}
		}
	}

	transcript, err := renderTranscript(counterpart, page, attachments)
	if err != nil {
		return err
	}
	name := base + ".html"
	w.log.DebugWithFields("writing transcript", map[string]interface{}{
		"counterpart": counterpart.Name,
		"file":        name,
	})
	if err := w.store.WriteFile(counterpart.Name, name, transcript); err != nil {
		return &apierrors.Error{Type: apierrors.ErrorTypeFilesystem, Message: err.Error()}
	}
	return nil
}

// renderSnapshot re-encodes the raw page with stable key ordering, indented,
// and with non-ASCII characters preserved rather than escaped.
func renderSnapshot(raw json.RawMessage) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &apierrors.Error{
			Type:    apierrors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to re-parse page for snapshot: %v", err),
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, &apierrors.Error{
			Type:    apierrors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to encode snapshot: %v", err),
		}
	}
	return buf.Bytes(), nil
}

// renderTranscript renders one page of messages to HTML.
func renderTranscript(counterpart hipchat.User, page *hipchat.HistoryPage, attachments map[string]fetcher.Attachment) ([]byte, error) {
	data := transcriptPage{Entries: make([]transcriptEntry, 0, len(page.Items))}

	for _, msg := range page.Items {
		entry := transcriptEntry{
			Author: msg.From.MentionName,
			Body:   msg.Message,
			Own:    msg.From.MentionName != counterpart.MentionName,
		}
		if ts, err := msg.Timestamp(); err == nil {
			entry.Time = ts.Format("15:04:05")
			entry.Date = ts.Format("01/02/2006")
		} else {
			entry.Time = msg.Date
		}
		if att, ok := attachments[messageKey(msg)]; ok {
			entry.Attachment = &attachmentRef{Name: att.Name, Inline: att.Inline}
		}
		data.Entries = append(data.Entries, entry)
	}

	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}
	return buf.Bytes(), nil
}

// messageKey identifies a message within a page for attachment lookups.
func messageKey(m hipchat.Message) string {
	if m.ID != "" {
		return m.ID
	}
	return m.Date
}
