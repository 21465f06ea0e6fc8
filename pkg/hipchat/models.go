package hipchat

import (
	"encoding/json"
	"time"
)

// User is a merged directory record: the list entry joined with the
// separately fetched detail record. Email is empty for accounts (bots,
// add-ons) that do not carry one.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name"`
	Email       string `json:"email,omitempty"`
}

// PageLinks carries the pagination links of a listing response. Next is
// empty on the terminal page.
type PageLinks struct {
	Self string `json:"self"`
	Prev string `json:"prev"`
	Next string `json:"next"`
}

// Sender identifies the author of a message. The API returns either a full
// user object or, for notification messages, a bare display-name string.
type Sender struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name"`
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		s.Name = name
		s.MentionName = name
		return nil
	}
	type alias Sender
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Sender(a)
	return nil
}

// FileRef points at an uploaded attachment. The URL is pre-signed; fetching
// it needs no bearer token.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Message is a single history item.
type Message struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	From    Sender   `json:"from"`
	Message string   `json:"message"`
	File    *FileRef `json:"file,omitempty"`
}

// Timestamp parses the message date. The raw string is kept on the struct
// because the date-cursor fallback reuses it verbatim as the next lower bound.
func (m *Message) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Date)
}

// HistoryPage is one fetched page of a user's 1:1 history. Raw holds the
// untouched response body for the structured snapshot.
type HistoryPage struct {
	Index int
	Items []Message
	Raw   json.RawMessage
}

// Wire shapes for the directory endpoints.

type userRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name"`
	Links       struct {
		Self string `json:"self"`
	} `json:"links"`
}

type userListPage struct {
	Items []userRef `json:"items"`
	Links PageLinks `json:"links"`
}

type userDetail struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name"`
	Email       string `json:"email"`
}

type tokenSession struct {
	Owner userRef `json:"owner"`
}

// historyEnvelope distinguishes a present-but-empty items array from a
// response that lacks the field entirely, which signals a bad token.
type historyEnvelope struct {
	Items *[]Message `json:"items"`
	Links PageLinks  `json:"links"`
}
