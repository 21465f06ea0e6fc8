package fetcher

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/storage"
)

type nopLimiter struct{}

func (nopLimiter) Acquire()               {}
func (nopLimiter) Penalize(time.Duration) {}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "plain filename",
			url:  "https://files.example.com/1234/report.pdf?Expires=1&Signature=x",
			want: "report.pdf",
		},
		{
			name: "percent-encoded spaces",
			url:  "https://files.example.com/1234/my%20screen%20shot.png",
			want: "my screen shot.png",
		},
		{
			name:    "no filename",
			url:     "https://files.example.com/",
			wantErr: true,
		},
		{
			name:    "unparseable",
			url:     "http://exa mple.com/a.png",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilenameFromURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsInlineImage(t *testing.T) {
	assert.True(t, IsInlineImage("photo.png"))
	assert.True(t, IsInlineImage("photo.PNG"))
	assert.True(t, IsInlineImage("anim.gif"))
	assert.True(t, IsInlineImage("pic.jpg"))
	assert.False(t, IsInlineImage("pic.jpeg"))
	assert.False(t, IsInlineImage("doc.pdf"))
	assert.False(t, IsInlineImage("archive.tar.gz"))
}

func TestFetchStreamsToDisk(t *testing.T) {
	content := strings.Repeat("binary-ish data ", 200)
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	root := t.TempDir()
	store := storage.NewManager(root)
	client := hipchat.NewClient(5*time.Second, &nopLimiter{}, 3, time.Second, logger.NewTestLogger())
	f := New(client, store, logger.NewTestLogger())

	att, err := f.Fetch("Alice Smith", hipchat.FileRef{
		Name: "shot.png",
		URL:  server.URL + "/uploads/shot%20one.png?Signature=abc",
	})

	require.NoError(t, err)
	assert.Equal(t, "shot one.png", att.Name)
	assert.Equal(t, int64(len(content)), att.Size)
	assert.True(t, att.Inline)

	// Pre-signed URLs are fetched without the bearer token
	assert.False(t, sawAuth)

	data, err := os.ReadFile(filepath.Join(root, "Alice Smith", "shot one.png"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFetchBadURL(t *testing.T) {
	store := storage.NewManager(t.TempDir())
	client := hipchat.NewClient(5*time.Second, &nopLimiter{}, 3, time.Second, logger.NewTestLogger())
	f := New(client, store, logger.NewTestLogger())

	_, err := f.Fetch("Alice Smith", hipchat.FileRef{URL: "https://files.example.com/"})
	require.Error(t, err)
}
