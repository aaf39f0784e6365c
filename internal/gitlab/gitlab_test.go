package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitLab serves a single-project repository from an in-memory map of
// path to content.
type fakeGitLab struct {
	project string
	token   string
	files   map[string]string
	tokens  []string
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.tokens = append(f.tokens, r.Header.Get(TokenHeader))
	if f.token != "" && r.Header.Get(TokenHeader) != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"401 Unauthorized"}`))
		return
	}

	prefix := "/api/v4/projects/" + strings.ReplaceAll(f.project, "/", "%2F") + "/repository/"
	p := r.URL.EscapedPath()
	if !strings.HasPrefix(p, prefix) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Project Not Found"}`))
		return
	}
	rest := strings.TrimPrefix(p, prefix)

	switch {
	case rest == "tree":
		dir := r.URL.Query().Get("path")
		var entries []TreeEntry
		for name := range f.files {
			parent, base := "", name
			if i := strings.LastIndex(name, "/"); i >= 0 {
				parent, base = name[:i], name[i+1:]
			}
			if parent == dir {
				entries = append(entries, TreeEntry{ID: "sha-" + base, Name: base, Type: "blob", Path: name})
			}
		}
		_ = json.NewEncoder(w).Encode(entries)
	case strings.HasPrefix(rest, "blobs/") && strings.HasSuffix(rest, "/raw"):
		sha := strings.TrimSuffix(strings.TrimPrefix(rest, "blobs/"), "/raw")
		for name, content := range f.files {
			base := name[strings.LastIndex(name, "/")+1:]
			if "sha-"+base == sha {
				_, _ = w.Write([]byte(content))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Blob Not Found"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newServer(t *testing.T, fake *fakeGitLab) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", fake.project, fake.token)
	c.HTTPClient = srv.Client()
	return c
}

func TestFetchFile(t *testing.T) {
	fake := &fakeGitLab{
		project: "group/checklists",
		token:   "glpat-secret",
		files: map[string]string{
			"specs/release.json": `{"sheets":[]}`,
			"specs/other.json":   `{}`,
			"README.md":          "readme",
		},
	}
	c := newServer(t, fake)

	data, err := c.FetchFile(context.Background(), "/specs/release.json", "main")
	require.NoError(t, err)
	assert.Equal(t, `{"sheets":[]}`, string(data))

	data, err = c.FetchFile(context.Background(), "README.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "readme", string(data))

	for _, tok := range fake.tokens {
		assert.Equal(t, "glpat-secret", tok)
	}
}

func TestFetchFileNotFound(t *testing.T) {
	c := newServer(t, &fakeGitLab{project: "7", files: map[string]string{"a.json": "{}"}})

	_, err := c.FetchFile(context.Background(), "b.json", "main")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "b.json", nf.Path)
}

func TestAPIError(t *testing.T) {
	c := newServer(t, &fakeGitLab{project: "7", token: "right", files: map[string]string{}})
	c.Token = "wrong"

	_, err := c.ListTree(context.Background(), "", "main")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "401 Unauthorized", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "401")
}

func TestListTreePaginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		n := 100
		if page == "2" {
			n = 3
		}
		entries := make([]TreeEntry, n)
		for i := range entries {
			entries[i] = TreeEntry{ID: fmt.Sprintf("%s-%d", page, i), Type: "blob"}
		}
		_ = json.NewEncoder(w).Encode(entries)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, ProjectID: "1", HTTPClient: srv.Client()}
	entries, err := c.ListTree(context.Background(), "docs", "dev")
	require.NoError(t, err)
	assert.Len(t, entries, 103)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", errorMessage([]byte(`{"error":"boom"}`)))
	assert.Equal(t, "plain text", errorMessage([]byte("plain text\n")))
	assert.Equal(t, "map[ref:[is missing]]", errorMessage([]byte(`{"message":{"ref":["is missing"]}}`)))
}

func TestCanceledContext(t *testing.T) {
	c := newServer(t, &fakeGitLab{project: "1", files: map[string]string{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RawBlob(ctx, "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
