// Package fetcher retrieves message attachments and resolves their local
// filenames. Fetches run strictly sequentially through the shared API client
// and its rate limiter: the remote call budget is one resource, not
// partitionable per download.
package fetcher

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/storage"
)

// inlineExtensions are the attachment types embedded as images in
// transcripts; everything else renders as a download link.
var inlineExtensions = map[string]bool{
	".png": true,
	".gif": true,
	".jpg": true,
}

// Attachment describes a fetched file as saved on disk.
type Attachment struct {
	Name   string
	Size   int64
	Inline bool
}

// Fetcher downloads attachment bodies and hands them to storage.
type Fetcher struct {
	client *hipchat.Client
	store  *storage.Manager
	log    logger.Logger
}

// New creates a Fetcher sharing the pipeline's client and storage manager.
func New(client *hipchat.Client, store *storage.Manager, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{client: client, store: store, log: log}
}

// Fetch retrieves the attachment behind ref with an unauthenticated GET (the
// URL is pre-signed) and streams it into the counterpart's directory.
func (f *Fetcher) Fetch(counterpart string, ref hipchat.FileRef) (Attachment, error) {
	name, err := FilenameFromURL(ref.URL)
	if err != nil {
		return Attachment{}, err
	}

	f.log.DebugWithFields("fetching attachment", map[string]interface{}{
		"url":      ref.URL,
		"filename": name,
	})

	body, err := f.client.Stream(ref.URL, "")
	if err != nil {
		return Attachment{}, err
	}
	defer body.Close()

	written, err := f.store.SaveStream(counterpart, name, body)
	if err != nil {
		return Attachment{}, &apierrors.Error{
			Type:    apierrors.ErrorTypeFilesystem,
			Message: err.Error(),
		}
	}

	f.log.DebugWithFields("attachment saved", map[string]interface{}{
		"filename": name,
		"size":     written,
	})

	return Attachment{Name: name, Size: written, Inline: IsInlineImage(name)}, nil
}

// FilenameFromURL derives the local filename from an attachment URL: the
// URL-decoded final path segment, extension preserved. Signing parameters
// and directory structure are deliberately stripped; only the name the
// uploader gave the file survives.
func FilenameFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &apierrors.Error{
			Type:    apierrors.ErrorTypeParsing,
			Message: fmt.Sprintf("invalid attachment URL %q: %v", rawURL, err),
		}
	}
	decoded, err := url.PathUnescape(parsed.Path)
	if err != nil {
		decoded = parsed.Path
	}
	name := path.Base(decoded)
	if name == "." || name == "/" || name == "" {
		return "", &apierrors.Error{
			Type:    apierrors.ErrorTypeParsing,
			Message: fmt.Sprintf("attachment URL %q has no filename", rawURL),
		}
	}
	return name, nil
}

// IsInlineImage reports whether the filename should be embedded as an image.
func IsInlineImage(name string) bool {
	return inlineExtensions[strings.ToLower(path.Ext(name))]
}
