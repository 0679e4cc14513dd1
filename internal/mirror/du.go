package mirror

import (
	"context"

	"dbxdl/internal/models"
	"dbxdl/internal/remote"
)

// Usage is the aggregate size of a remote subtree.
type Usage struct {
	Bytes int64
	Files int
	// Folders counts the folders below the starting path.
	Folders int
}

// DiskUsage returns the total size in bytes of every file under path.
func DiskUsage(ctx context.Context, client remote.Client, path string) (int64, error) {
	u, err := SumUsage(ctx, client, path)
	if err != nil {
		return 0, err
	}
	return u.Bytes, nil
}

// SumUsage walks path depth first, one listing at a time. Any listing error
// or unexpected entry aborts the walk without a partial result.
func SumUsage(ctx context.Context, client remote.Client, path string) (Usage, error) {
	entries, err := ListAll(ctx, client, path)
	if err != nil {
		return Usage{}, err
	}
	files, folders, err := models.Classify(entries)
	if err != nil {
		return Usage{}, err
	}

	var u Usage
	for _, f := range files {
		u.Bytes += f.Size
		u.Files++
	}
	for _, f := range folders {
		sub, err := SumUsage(ctx, client, f.Path)
		if err != nil {
			return Usage{}, err
		}
		u.Bytes += sub.Bytes
		u.Files += sub.Files
		u.Folders += sub.Folders + 1
	}
	return u, nil
}
