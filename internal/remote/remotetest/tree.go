// Package remotetest provides an in-memory remote folder tree that records
// every call made against it.
package remotetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dbxdl/internal/models"
)

// ErrNotFound is returned for paths that were never added.
var ErrNotFound = errors.New("remotetest: not found")

// Tree is a fake remote directory client. Folder children keep insertion
// order and are served PageSize entries at a time.
type Tree struct {
	// PageSize bounds the entries per listing page (default 2).
	PageSize int
	// ListDelay is slept inside every listing call.
	ListDelay time.Duration

	mu          sync.Mutex
	children    map[string][]models.Entry
	content     map[string][]byte
	listErr     map[string]error
	downloadErr map[string]error
	listedPaths []string
	downloaded  []string
	nextID      int
	listCalls   atomic.Int64
	contCalls   atomic.Int64
	downloads   atomic.Int64
	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func NewTree() *Tree {
	return &Tree{
		PageSize:    2,
		children:    map[string][]models.Entry{"": nil},
		content:     map[string][]byte{},
		listErr:     map[string]error{},
		downloadErr: map[string]error{},
	}
}

// AddFolder adds the folder at p and any missing ancestors.
func (t *Tree) AddFolder(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addFolderLocked(clean(p))
}

// AddFile adds a file with the given content, creating parent folders.
func (t *Tree) AddFile(p string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p = clean(p)
	parent := parentOf(p)
	t.addFolderLocked(parent)
	t.nextID++
	t.children[parent] = append(t.children[parent], models.Entry{
		Kind: models.KindFile,
		Tag:  "file",
		ID:   "id:" + strconv.Itoa(t.nextID),
		Name: path.Base(p),
		Path: p,
		Size: int64(len(data)),
	})
	t.content[p] = data
}

// AddEntry appends a raw entry to parent, e.g. one of an unknown kind.
func (t *Tree) AddEntry(parent string, e models.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent = clean(parent)
	t.addFolderLocked(parent)
	t.children[parent] = append(t.children[parent], e)
}

// FailList makes every listing call for folder p fail with err.
func (t *Tree) FailList(p string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listErr[clean(p)] = err
}

// FailDownload makes downloads of file p fail with err.
func (t *Tree) FailDownload(p string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downloadErr[clean(p)] = err
}

func (t *Tree) addFolderLocked(p string) {
	if _, ok := t.children[p]; ok {
		return
	}
	parent := parentOf(p)
	t.addFolderLocked(parent)
	t.nextID++
	t.children[parent] = append(t.children[parent], models.Entry{
		Kind: models.KindFolder,
		Tag:  "folder",
		ID:   "id:" + strconv.Itoa(t.nextID),
		Name: path.Base(p),
		Path: p,
	})
	t.children[p] = nil
}

func (t *Tree) ListFolder(ctx context.Context, p string) (*models.ListingPage, error) {
	t.listCalls.Add(1)
	return t.page(ctx, clean(p), 0, true)
}

func (t *Tree) ListFolderContinue(ctx context.Context, cursor string) (*models.ListingPage, error) {
	t.contCalls.Add(1)
	p, offset, ok := strings.Cut(cursor, "\x00")
	if !ok {
		return nil, fmt.Errorf("remotetest: bad cursor %q", cursor)
	}
	n, err := strconv.Atoi(offset)
	if err != nil {
		return nil, fmt.Errorf("remotetest: bad cursor %q", cursor)
	}
	return t.page(ctx, p, n, false)
}

func (t *Tree) page(ctx context.Context, p string, offset int, first bool) (*models.ListingPage, error) {
	cur := t.inflight.Add(1)
	defer t.inflight.Add(-1)
	for {
		peak := t.maxInflight.Load()
		if cur <= peak || t.maxInflight.CompareAndSwap(peak, cur) {
			break
		}
	}

	if t.ListDelay > 0 {
		select {
		case <-time.After(t.ListDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.listErr[p]; err != nil {
		return nil, err
	}
	entries, ok := t.children[p]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", p, ErrNotFound)
	}
	if first {
		t.listedPaths = append(t.listedPaths, p)
	}

	size := t.PageSize
	if size <= 0 {
		size = len(entries) + 1
	}
	end := min(offset+size, len(entries))
	page := &models.ListingPage{
		Entries: append([]models.Entry(nil), entries[offset:end]...),
	}
	if end < len(entries) {
		page.HasMore = true
		page.Cursor = p + "\x00" + strconv.Itoa(end)
	}
	return page, nil
}

func (t *Tree) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	t.downloads.Add(1)
	p = clean(p)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.downloaded = append(t.downloaded, p)

	if err := t.downloadErr[p]; err != nil {
		return nil, err
	}
	data, ok := t.content[p]
	if !ok {
		return nil, fmt.Errorf("download %q: %w", p, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListCalls is the number of initial listing calls.
func (t *Tree) ListCalls() int { return int(t.listCalls.Load()) }

// ContinueCalls is the number of continuation calls.
func (t *Tree) ContinueCalls() int { return int(t.contCalls.Load()) }

// DownloadCalls is the number of content fetches attempted.
func (t *Tree) DownloadCalls() int { return int(t.downloads.Load()) }

// MaxConcurrentListings is the peak number of listing calls in flight.
func (t *Tree) MaxConcurrentListings() int { return int(t.maxInflight.Load()) }

// ListedPaths returns the folders whose first page was served, in call order.
func (t *Tree) ListedPaths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.listedPaths...)
}

// Downloaded returns the files fetched, in call order.
func (t *Tree) Downloaded() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.downloaded...)
}

// Counts reports the number of files and folders in the tree, root included.
func (t *Tree) Counts() (files, folders int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.content), len(t.children)
}

// Content returns the bytes stored for file p.
func (t *Tree) Content(p string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content[clean(p)]
}

// ResetCounters zeroes every call counter and record.
func (t *Tree) ResetCounters() {
	t.listCalls.Store(0)
	t.contCalls.Store(0)
	t.downloads.Store(0)
	t.maxInflight.Store(0)
	t.mu.Lock()
	t.listedPaths = nil
	t.downloaded = nil
	t.mu.Unlock()
}

// Synthetic builds a tree of the given depth where every folder holds
// width subfolders and filesPerFolder files.
func Synthetic(depth, width, filesPerFolder int) *Tree {
	t := NewTree()
	var build func(dir string, level int)
	build = func(dir string, level int) {
		for i := 0; i < filesPerFolder; i++ {
			t.AddFile(fmt.Sprintf("%s/f%d.bin", dir, i), []byte(fmt.Sprintf("%s#%d", dir, i)))
		}
		if level == depth {
			return
		}
		for i := 0; i < width; i++ {
			sub := fmt.Sprintf("%s/d%d", dir, i)
			t.AddFolder(sub)
			build(sub, level+1)
		}
	}
	build("", 0)
	return t
}

func clean(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	return path.Clean("/" + p)
}

func parentOf(p string) string {
	if p == "" {
		return ""
	}
	return clean(path.Dir(p))
}
