package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"hcexport/internal/fetcher"
	"hcexport/pkg/config"
	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/ratelimit"
	"hcexport/pkg/storage"
)

// Result summarizes one user's export.
type Result struct {
	User        hipchat.User
	Pages       int
	Messages    int
	Attachments int
	Err         error
}

// Pipeline drives the whole export: resolve the token owner, enumerate the
// user directory, then drain each user's history through the writer and the
// attachment fetcher. Processing is strictly sequential across users and
// pages: the remote rate budget is one shared resource and its limiter
// state is not partitionable per user.
type Pipeline struct {
	cfg       *config.Config
	client    *hipchat.Client
	directory *hipchat.Directory
	log       logger.Logger
}

// New builds a Pipeline and its collaborators. The rate limiter is
// constructed here, once, and passed by handle into the client; every
// authenticated call and attachment download funnels through it.
func New(cfg *config.Config) (*Pipeline, error) {
	log := logger.GetLogger()

	limiter := ratelimit.New(ratelimit.Options{
		Interval:       cfg.RateLimit.MinInterval,
		WindowCalls:    cfg.RateLimit.WindowCalls,
		WindowCooldown: cfg.RateLimit.WindowCooldown,
		Logger:         log,
	})
	client := hipchat.NewClient(
		cfg.HipChat.RequestTimeout,
		limiter,
		cfg.RateLimit.MaxAttempts,
		cfg.RateLimit.RetryCooldown,
		log,
	)

	return &Pipeline{
		cfg:       cfg,
		client:    client,
		directory: hipchat.NewDirectory(client, cfg.HipChat.BaseURL, log),
		log:       log,
	}, nil
}

// Directory resolves the token owner and the set of users to export,
// applying the optional single-user filter.
func (p *Pipeline) Directory() (hipchat.User, map[string]hipchat.User, error) {
	token := p.cfg.HipChat.UserToken

	owner, err := p.directory.Owner(token)
	if err != nil {
		return hipchat.User{}, nil, err
	}
	p.log.InfoWithFields("resolved token owner", map[string]interface{}{
		"owner": owner.Name,
	})

	users, err := p.directory.ListUsers(token)
	if err != nil {
		return hipchat.User{}, nil, err
	}

	if filter := p.cfg.Export.User; filter != "" {
		filtered := make(map[string]hipchat.User)
		for id, user := range users {
			if user.Name == filter {
				filtered[id] = user
			}
		}
		if len(filtered) == 0 {
			return hipchat.User{}, nil, apierrors.Usage("user %q does not exist or their name is spelled wrong", filter)
		}
		users = filtered
	}

	return owner, users, nil
}

// Run exports every user's 1:1 history. A per-user failure is isolated and
// the run continues unless fail-fast is set; failed users are reported in a
// summary error at the end.
func (p *Pipeline) Run() ([]Result, error) {
	owner, users, err := p.Directory()
	if err != nil {
		return nil, err
	}

	root := filepath.Join(p.cfg.Output.BaseDirectory, owner.Name)
	results := make([]Result, 0, len(users))
	var failures []error
	var failedNames []string

	for _, user := range users {
		res := p.exportUser(owner, root, user)
		results = append(results, res)

		if res.Err != nil {
			p.log.WithError(res.Err).WithField("user", res.User.Name).Error("export failed for user")
			if p.cfg.Export.FailFast {
				return results, res.Err
			}
			failures = append(failures, res.Err)
			failedNames = append(failedNames, res.User.Name)
			continue
		}
		p.log.InfoWithFields("export complete for user", map[string]interface{}{
			"user":        res.User.Name,
			"pages":       res.Pages,
			"messages":    res.Messages,
			"attachments": res.Attachments,
		})
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("export failed for %d of %d users (%s): %w",
			len(failures), len(users), strings.Join(failedNames, ", "), errors.Join(failures...))
	}
	return results, nil
}

// exportUser drains one user's history paginator, fetching attachments
// before each page's transcript is written. Pages arrive and are persisted
// in strictly increasing order.
func (p *Pipeline) exportUser(owner hipchat.User, root string, user hipchat.User) Result {
	res := Result{User: user}

	p.log.InfoWithFields("exporting 1-to-1 messages", map[string]interface{}{
		"user":  user.Name,
		"email": user.Email,
		"id":    user.ID,
	})

	store := storage.NewManager(root)
	writer := NewWriter(store, p.cfg.Output.RawJSON, p.log)
	fetch := fetcher.New(p.client, store, p.log)

	pager := hipchat.NewHistoryPaginator(
		p.client,
		p.cfg.HipChat.BaseURL,
		p.cfg.HipChat.UserToken,
		user.ID,
		p.cfg.Export.PageSize,
		p.log,
	)

	for pager.Next() {
		page := pager.Page()

		attachments := make(map[string]fetcher.Attachment)
		for _, msg := range page.Items {
			if msg.File == nil {
				continue
			}
			att, err := fetch.Fetch(user.Name, *msg.File)
			if err != nil {
				res.Err = err
				return res
			}
			attachments[messageKey(msg)] = att
			res.Attachments++
		}

		if err := writer.WritePage(user, page, attachments); err != nil {
			res.Err = err
			return res
		}
		res.Pages++
		res.Messages += len(page.Items)
	}

	res.Err = pager.Err()
	return res
}
