package hipchat

import (
	"fmt"
	"net/url"
)

// DefaultPageSize is the max-results ceiling used for history requests.
const DefaultPageSize = 1000

// UserListURL constructs the URL for the paginated user list.
func UserListURL(baseURL string) string {
	return fmt.Sprintf("%s/v2/user", baseURL)
}

// UserDetailURL constructs the URL for a user's profile detail record.
func UserDetailURL(baseURL, userID string) string {
	return fmt.Sprintf("%s/v2/user/%s", baseURL, url.PathEscape(userID))
}

// TokenURL constructs the token introspection URL that resolves the
// authenticated caller's identity.
func TokenURL(baseURL, token string) string {
	return fmt.Sprintf("%s/v2/oauth/token/%s", baseURL, url.PathEscape(token))
}

// HistoryURL constructs a history query for one user, ascending from the
// given lower-bound timestamp.
func HistoryURL(baseURL, userID, date string, maxResults int) string {
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}
	params := url.Values{}
	params.Set("date", date)
	params.Set("reverse", "false")
	params.Set("max-results", fmt.Sprintf("%d", maxResults))
	return fmt.Sprintf("%s/v2/user/%s/history?%s", baseURL, url.PathEscape(userID), params.Encode())
}
