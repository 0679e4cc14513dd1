// Package blobstore exposes any gocloud.dev/blob bucket as a remote folder
// tree, using "/" delimited listing to emulate folders.
package blobstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"dbxdl/internal/models"
	"dbxdl/internal/remote/cursor"
)

const (
	delimiter       = "/"
	DefaultPageSize = 1000
)

type Client struct {
	bucket   *blob.Bucket
	pageSize int
	owned    bool
}

// Open opens the bucket at url (mem://, file:///dir, ...). Close releases it.
func Open(ctx context.Context, url string, pageSize int) (*Client, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	c := New(bucket, pageSize)
	c.owned = true
	return c, nil
}

// New wraps an already opened bucket; the caller keeps ownership of it.
func New(bucket *blob.Bucket, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{bucket: bucket, pageSize: pageSize}
}

func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.bucket.Close()
}

func (c *Client) ListFolder(ctx context.Context, folder string) (*models.ListingPage, error) {
	return c.list(ctx, keyPrefix(folder), blob.FirstPageToken)
}

func (c *Client) ListFolderContinue(ctx context.Context, cur string) (*models.ListingPage, error) {
	prefix, token, err := cursor.Decode(cur)
	if err != nil {
		return nil, err
	}
	return c.list(ctx, prefix, []byte(token))
}

func (c *Client) list(ctx context.Context, prefix string, token []byte) (*models.ListingPage, error) {
	objs, next, err := c.bucket.ListPage(ctx, token, c.pageSize, &blob.ListOptions{
		Prefix:    prefix,
		Delimiter: delimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	page := &models.ListingPage{Entries: make([]models.Entry, 0, len(objs))}
	for _, obj := range objs {
		if obj.Key == prefix {
			continue
		}
		key := strings.TrimSuffix(obj.Key, delimiter)
		entry := models.Entry{
			ID:   obj.Key,
			Name: path.Base(key),
			Path: "/" + key,
		}
		if obj.IsDir {
			entry.Kind = models.KindFolder
			entry.Tag = "dir"
		} else {
			entry.Kind = models.KindFile
			entry.Tag = "blob"
			entry.Size = obj.Size
			if len(obj.MD5) > 0 {
				entry.ID = hex.EncodeToString(obj.MD5)
			}
		}
		page.Entries = append(page.Entries, entry)
	}

	if len(next) > 0 {
		page.HasMore = true
		page.Cursor = cursor.Encode(prefix, string(next))
	}
	return page, nil
}

func (c *Client) Download(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	r, err := c.bucket.NewReader(ctx, strings.TrimPrefix(remotePath, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	return r, nil
}

func keyPrefix(folder string) string {
	prefix := strings.Trim(folder, "/")
	if prefix == "" {
		return ""
	}
	return prefix + delimiter
}
