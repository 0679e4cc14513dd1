package models

import "fmt"

// EntryKind discriminates the variants of a remote folder entry.
type EntryKind uint8

const (
	KindUnknown EntryKind = iota
	KindFile
	KindFolder
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Entry is one child of a remote folder listing.
//
// Path is the canonical remote path and identifies the entry both for
// listing its children and for mapping it onto the local download root.
// Size is only meaningful for files.
type Entry struct {
	Kind EntryKind `json:"kind"`
	Tag  string    `json:"tag,omitempty"`
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Path string    `json:"path"`
	Size int64     `json:"size,omitempty"`
}

// ListingPage is a single page returned by a remote listing call.
type ListingPage struct {
	Entries []Entry
	Cursor  string
	HasMore bool
}

// UnexpectedEntryError is returned when a listing yields an entry that is
// neither a file nor a folder.
type UnexpectedEntryError struct {
	Entry Entry
}

func (e *UnexpectedEntryError) Error() string {
	return fmt.Sprintf("unexpected folder entry %q (tag %q): expected file or folder", e.Entry.Path, e.Entry.Tag)
}

// Classify splits entries into files and folders, preserving their order.
// The first entry of any other kind aborts classification.
func Classify(entries []Entry) (files, folders []Entry, err error) {
	for _, e := range entries {
		switch e.Kind {
		case KindFile:
			files = append(files, e)
		case KindFolder:
			folders = append(folders, e)
		default:
			return nil, nil, &UnexpectedEntryError{Entry: e}
		}
	}
	return files, folders, nil
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

type UsageResult struct {
	Path           string  `json:"path"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeGB    float64 `json:"total_size_gb"`
	TotalSizeHuman string  `json:"total_size_human"`
	Files          int     `json:"files"`
	Folders        int     `json:"folders"`
	LocalDir       string  `json:"local_dir,omitempty"`
	LocalFreeBytes *uint64 `json:"local_free_bytes,omitempty"`
	FitsLocally    *bool   `json:"fits_locally,omitempty"`
}

type ArchiveInfo struct {
	ArchivePath      string   `json:"archive_path"`
	OriginalPaths    []string `json:"original_paths"`
	CompressedSize   int64    `json:"compressed_size"`
	OriginalSize     int64    `json:"original_size"`
	CompressionRatio float64  `json:"compression_ratio"`
	CreatedAt        string   `json:"created_at"`
}
