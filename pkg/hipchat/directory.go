package hipchat

import (
	"strconv"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/logger"
)

// Directory enumerates queryable users and resolves the token owner.
type Directory struct {
	client  *Client
	baseURL string
	log     logger.Logger
}

// NewDirectory creates a Directory backed by the given client.
func NewDirectory(client *Client, baseURL string, log logger.Logger) *Directory {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Directory{client: client, baseURL: baseURL, log: log}
}

// ListUsers walks the paginated user list and, for every entry, fetches the
// profile detail record and merges the two into one User. A detail record
// without an email is stored as-is rather than aborting: bot accounts and
// add-ons legitimately omit it.
func (d *Directory) ListUsers(token string) (map[string]User, error) {
	users := make(map[string]User)

	pageURL := UserListURL(d.baseURL)
	for pageURL != "" {
		var page userListPage
		if _, err := d.client.GetJSON(pageURL, token, &page); err != nil {
			return nil, err
		}
		d.log.DebugWithFields("fetched user page", map[string]interface{}{
			"user_count": len(page.Items),
		})

		for _, ref := range page.Items {
			id := strconv.Itoa(ref.ID)

			detailURL := ref.Links.Self
			if detailURL == "" {
				detailURL = UserDetailURL(d.baseURL, id)
			}
			var detail userDetail
			if _, err := d.client.GetJSON(detailURL, token, &detail); err != nil {
				return nil, err
			}

			user := User{
				ID:          id,
				Name:        ref.Name,
				MentionName: ref.MentionName,
				Email:       detail.Email,
			}
			if user.MentionName == "" {
				user.MentionName = detail.MentionName
			}
			users[id] = user
		}

		pageURL = page.Links.Next
	}

	return users, nil
}

// Owner introspects the token and returns the authenticated caller's own
// User. The result labels the output root and decides transcript authorship.
func (d *Directory) Owner(token string) (User, error) {
	var session tokenSession
	if _, err := d.client.GetJSON(TokenURL(d.baseURL, token), token, &session); err != nil {
		return User{}, err
	}
	if session.Owner.ID == 0 && session.Owner.Name == "" {
		return User{}, apierrors.Usage("could not resolve the token owner; check your token and try again")
	}
	return User{
		ID:          strconv.Itoa(session.Owner.ID),
		Name:        session.Owner.Name,
		MentionName: session.Owner.MentionName,
	}, nil
}
