// Package remote defines the remote directory client used by the mirror and
// selects a backend from the loaded configuration.
package remote

import (
	"context"
	"fmt"
	"io"

	"dbxdl/config"
	"dbxdl/internal/models"
	"dbxdl/internal/remote/blobstore"
	"dbxdl/internal/remote/dropbox"
	"dbxdl/internal/s3client"
)

// Client is a paginated view of a remote folder tree.
//
// The root folder is addressed by the empty path. Cursors are opaque and
// only valid for the client that produced them.
type Client interface {
	ListFolder(ctx context.Context, path string) (*models.ListingPage, error)
	ListFolderContinue(ctx context.Context, cursor string) (*models.ListingPage, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

var (
	_ Client = (*dropbox.Client)(nil)
	_ Client = (*s3client.Client)(nil)
	_ Client = (*blobstore.Client)(nil)
)

// New builds the client for cfg.Provider. Release it with Close.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderDropbox, "":
		opts := dropbox.DefaultOptions()
		if cfg.ApiURL != "" {
			opts.APIURL = cfg.ApiURL
			opts.ContentURL = cfg.ApiURL
		}
		return dropbox.New(cfg.APIKey, opts), nil
	case config.ProviderS3:
		return s3client.New(ctx, cfg)
	case config.ProviderBlob:
		return blobstore.Open(ctx, cfg.BucketURL, 0)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// Close releases clients that hold resources.
func Close(c Client) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
