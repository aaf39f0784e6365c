// Package gitlab downloads checklist documents from a GitLab repository
// through the REST API.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// TokenHeader carries the personal access token.
const TokenHeader = "PRIVATE-TOKEN"

// maxBody limits the size of a downloaded blob.
const maxBody = 64 << 20

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	URL     string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gitlab: %s returned %d", e.URL, e.Status)
	}
	return fmt.Sprintf("gitlab: %s returned %d: %s", e.URL, e.Status, e.Message)
}

// NotFoundError is returned by FetchFile when the path has no blob.
type NotFoundError struct {
	Path string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("gitlab: %s not found at %s", e.Path, e.Ref)
}

// TreeEntry is one item of a repository tree listing.
type TreeEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Mode string `json:"mode"`
}

// IsBlob reports whether the entry is a file.
func (e TreeEntry) IsBlob() bool {
	return e.Type == "blob"
}

// Client talks to one project of a GitLab instance.
type Client struct {
	BaseURL    string
	ProjectID  string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a client with a 30 second request timeout.
func NewClient(baseURL, projectID, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ProjectID:  projectID,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// projectURL builds /api/v4/projects/:id/<elem...>. Project paths such as
// "group/project" are escaped as a single segment.
func (c *Client) projectURL(query url.Values, elem ...string) string {
	u := strings.TrimRight(c.BaseURL, "/") + "/api/v4/projects/" + url.PathEscape(c.ProjectID)
	for _, e := range elem {
		u += "/" + url.PathEscape(e)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set(TokenHeader, c.Token)
	}

	c.logger().Debug("gitlab request", "url", rawURL)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read gitlab response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, URL: rawURL, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts the "message" or "error" field of a GitLab error
// body, falling back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Message interface{} `json:"message"`
		Error   string      `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != nil:
			return fmt.Sprint(payload.Message)
		case payload.Error != "":
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ListTree lists the entries of dir at ref. An empty dir lists the
// repository root.
func (c *Client) ListTree(ctx context.Context, dir, ref string) ([]TreeEntry, error) {
	query := url.Values{}
	query.Set("per_page", "100")
	if dir = strings.Trim(dir, "/"); dir != "" && dir != "." {
		query.Set("path", dir)
	}
	if ref != "" {
		query.Set("ref", ref)
	}

	var all []TreeEntry
	for page := 1; ; page++ {
		query.Set("page", fmt.Sprint(page))
		body, err := c.get(ctx, c.projectURL(query, "repository", "tree"))
		if err != nil {
			return nil, err
		}
		var entries []TreeEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode tree listing: %w", err)
		}
		all = append(all, entries...)
		if len(entries) < 100 {
			return all, nil
		}
	}
}

// RawBlob downloads the content of a blob.
func (c *Client) RawBlob(ctx context.Context, sha string) ([]byte, error) {
	return c.get(ctx, c.projectURL(nil, "repository", "blobs", sha, "raw"))
}

// FetchFile downloads the file at filePath and ref by listing its parent
// directory and reading the blob with the matching name.
func (c *Client) FetchFile(ctx context.Context, filePath, ref string) ([]byte, error) {
	filePath = strings.Trim(filePath, "/")
	dir, name := path.Split(filePath)

	entries, err := c.ListTree(ctx, dir, ref)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsBlob() && e.Name == name {
			c.logger().Info("fetching document", "path", filePath, "ref", ref, "blob", e.ID)
			return c.RawBlob(ctx, e.ID)
		}
	}
	return nil, &NotFoundError{Path: filePath, Ref: ref}
}
