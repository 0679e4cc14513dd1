// Package dropbox implements the remote directory client against the
// Dropbox HTTP API v2.
package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dbxdl/internal/models"
)

const (
	DefaultAPIURL     = "https://api.dropboxapi.com"
	DefaultContentURL = "https://content.dropboxapi.com"

	listFolderPath         = "/2/files/list_folder"
	listFolderContinuePath = "/2/files/list_folder/continue"
	downloadPath           = "/2/files/download"
)

type Options struct {
	APIURL     string
	ContentURL string
	Timeout    time.Duration
	// RetryCount applies to listing calls only; downloads stream their body
	// and are never retried.
	RetryCount int
}

func DefaultOptions() Options {
	return Options{
		APIURL:     DefaultAPIURL,
		ContentURL: DefaultContentURL,
		Timeout:    60 * time.Second,
		RetryCount: 2,
	}
}

// APIError is a non-2xx response from the Dropbox API.
type APIError struct {
	Endpoint   string `json:"-"`
	StatusCode int    `json:"-"`
	Summary    string `json:"error_summary"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Summary)
}

type Client struct {
	api     *resty.Client
	content *resty.Client
}

func New(token string, opts Options) *Client {
	defaults := DefaultOptions()
	if opts.APIURL == "" {
		opts.APIURL = defaults.APIURL
	}
	if opts.ContentURL == "" {
		opts.ContentURL = defaults.ContentURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}

	api := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIURL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(token).
		SetHeader("User-Agent", "dbxdl/1.0").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return err != nil
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	// No client timeout for content: large files may take longer than any
	// fixed bound, cancellation comes from the request context.
	content := resty.New().
		SetBaseURL(strings.TrimRight(opts.ContentURL, "/")).
		SetAuthToken(token).
		SetHeader("User-Agent", "dbxdl/1.0")

	return &Client{api: api, content: content}
}

type entryJSON struct {
	Tag         string `json:".tag"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	PathLower   string `json:"path_lower"`
	PathDisplay string `json:"path_display"`
	Size        int64  `json:"size"`
}

type listFolderResult struct {
	Entries []entryJSON `json:"entries"`
	Cursor  string      `json:"cursor"`
	HasMore bool        `json:"has_more"`
}

type listFolderArg struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type listFolderContinueArg struct {
	Cursor string `json:"cursor"`
}

type downloadArg struct {
	Path string `json:"path"`
}

func (c *Client) ListFolder(ctx context.Context, path string) (*models.ListingPage, error) {
	return c.list(ctx, listFolderPath, listFolderArg{Path: normalizePath(path)})
}

func (c *Client) ListFolderContinue(ctx context.Context, cursor string) (*models.ListingPage, error) {
	return c.list(ctx, listFolderContinuePath, listFolderContinueArg{Cursor: cursor})
}

func (c *Client) list(ctx context.Context, endpoint string, body any) (*models.ListingPage, error) {
	var result listFolderResult
	apiErr := &APIError{}

	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(apiErr).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dropbox %s: %w", endpoint, err)
	}
	if resp.IsError() {
		apiErr.Endpoint = endpoint
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Summary == "" {
			apiErr.Summary = strings.TrimSpace(resp.String())
		}
		return nil, apiErr
	}

	page := &models.ListingPage{
		Entries: make([]models.Entry, 0, len(result.Entries)),
		Cursor:  result.Cursor,
		HasMore: result.HasMore,
	}
	for _, e := range result.Entries {
		page.Entries = append(page.Entries, toEntry(e))
	}
	return page, nil
}

// Download opens the content stream of the file at path. The caller closes it.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	arg, err := json.Marshal(downloadArg{Path: path})
	if err != nil {
		return nil, err
	}

	resp, err := c.content.R().
		SetContext(ctx).
		SetHeader("Dropbox-API-Arg", headerSafeJSON(arg)).
		SetDoNotParseResponse(true).
		Post(downloadPath)
	if err != nil {
		return nil, fmt.Errorf("dropbox %s: %w", downloadPath, err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		apiErr := &APIError{Endpoint: downloadPath, StatusCode: resp.StatusCode()}
		data, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Summary == "" {
			apiErr.Summary = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return body, nil
}

func toEntry(e entryJSON) models.Entry {
	entry := models.Entry{
		Tag:  e.Tag,
		ID:   e.ID,
		Name: e.Name,
		Path: e.PathLower,
	}
	if entry.Path == "" {
		entry.Path = strings.ToLower(e.PathDisplay)
	}

	switch e.Tag {
	case "file":
		entry.Kind = models.KindFile
		entry.Size = e.Size
	case "folder":
		entry.Kind = models.KindFolder
	default:
		entry.Kind = models.KindUnknown
	}
	return entry
}

// normalizePath maps the account root to the empty path Dropbox expects.
func normalizePath(path string) string {
	if path == "/" {
		return ""
	}
	return path
}

// headerSafeJSON escapes non-ASCII runes, which Dropbox rejects in
// Dropbox-API-Arg.
func headerSafeJSON(data []byte) string {
	var b strings.Builder
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String()
}
