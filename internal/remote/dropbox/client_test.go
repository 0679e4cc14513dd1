package dropbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"dbxdl/internal/models"
)

const testToken = "test-token"

// mockDropbox serves a two-page root listing and file content for the
// concrete a.txt / sub/b.txt tree.
type mockDropbox struct {
	listCalls     atomic.Int32
	continueCalls atomic.Int32
	downloadArgs  chan string
}

func newMockServer(t *testing.T, m *mockDropbox) *httptest.Server {
	t.Helper()

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error_summary": "invalid_access_token/"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.Post(listFolderPath, func(w http.ResponseWriter, r *http.Request) {
		m.listCalls.Add(1)
		var arg listFolderArg
		if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch arg.Path {
		case "":
			writeJSON(w, `{"entries": [
				{".tag": "file", "id": "id:a", "name": "a.txt", "path_lower": "/a.txt", "path_display": "/a.txt", "size": 10}
			], "cursor": "page-2", "has_more": true}`)
		case "/sub":
			writeJSON(w, `{"entries": [
				{".tag": "file", "id": "id:b", "name": "B.txt", "path_display": "/sub/B.txt", "size": 20}
			], "cursor": "done", "has_more": false}`)
		case "/trash":
			writeJSON(w, `{"entries": [
				{".tag": "deleted", "name": "old.txt", "path_lower": "/trash/old.txt"}
			], "cursor": "done", "has_more": false}`)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error_summary": "path/not_found/.."}`))
		}
	})

	router.Post(listFolderContinuePath, func(w http.ResponseWriter, r *http.Request) {
		m.continueCalls.Add(1)
		var arg listFolderContinueArg
		if err := json.NewDecoder(r.Body).Decode(&arg); err != nil || arg.Cursor != "page-2" {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		writeJSON(w, `{"entries": [
			{".tag": "folder", "id": "id:sub", "name": "sub", "path_lower": "/sub", "path_display": "/sub"}
		], "cursor": "done", "has_more": false}`)
	})

	router.Post(downloadPath, func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Dropbox-API-Arg")
		if m.downloadArgs != nil {
			m.downloadArgs <- raw
		}
		var arg downloadArg
		if err := json.Unmarshal([]byte(raw), &arg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch arg.Path {
		case "/a.txt":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("0123456789"))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error_summary": "path/not_found/"}`))
		}
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func newTestClient(t *testing.T, m *mockDropbox, token string) *Client {
	t.Helper()
	server := newMockServer(t, m)
	return New(token, Options{APIURL: server.URL, ContentURL: server.URL})
}

func TestListFolderPagination(t *testing.T) {
	m := &mockDropbox{}
	client := newTestClient(t, m, testToken)
	ctx := context.Background()

	page, err := client.ListFolder(ctx, "/")
	if err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}

	if !page.HasMore || page.Cursor != "page-2" {
		t.Errorf("ListFolder() page = %+v, want has_more with cursor page-2", page)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("ListFolder() entries = %d, want 1", len(page.Entries))
	}

	file := page.Entries[0]
	if file.Kind != models.KindFile || file.Path != "/a.txt" || file.Size != 10 || file.ID != "id:a" {
		t.Errorf("ListFolder() entry = %+v, want file /a.txt of 10 bytes", file)
	}

	next, err := client.ListFolderContinue(ctx, page.Cursor)
	if err != nil {
		t.Fatalf("ListFolderContinue() error = %v", err)
	}
	if next.HasMore {
		t.Error("ListFolderContinue() has_more = true, want false")
	}
	if len(next.Entries) != 1 || next.Entries[0].Kind != models.KindFolder || next.Entries[0].Path != "/sub" {
		t.Errorf("ListFolderContinue() entries = %+v, want folder /sub", next.Entries)
	}

	if got := m.listCalls.Load(); got != 1 {
		t.Errorf("list_folder calls = %d, want 1", got)
	}
	if got := m.continueCalls.Load(); got != 1 {
		t.Errorf("list_folder/continue calls = %d, want 1", got)
	}
}

func TestListFolderLowercasesDisplayPath(t *testing.T) {
	client := newTestClient(t, &mockDropbox{}, testToken)

	page, err := client.ListFolder(context.Background(), "/sub")
	if err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}

	if got := page.Entries[0].Path; got != "/sub/b.txt" {
		t.Errorf("entry path = %s, want /sub/b.txt", got)
	}
	if got := page.Entries[0].Name; got != "B.txt" {
		t.Errorf("entry name = %s, want B.txt", got)
	}
}

func TestListFolderUnknownTag(t *testing.T) {
	client := newTestClient(t, &mockDropbox{}, testToken)

	page, err := client.ListFolder(context.Background(), "/trash")
	if err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}

	entry := page.Entries[0]
	if entry.Kind != models.KindUnknown || entry.Tag != "deleted" {
		t.Errorf("entry = %+v, want unknown kind with tag deleted", entry)
	}
}

func TestListFolderErrors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		path    string
		status  int
		summary string
	}{
		{"Not found", testToken, "/missing", http.StatusConflict, "path/not_found/.."},
		{"Unauthorized", "wrong-token", "", http.StatusUnauthorized, "invalid_access_token/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &mockDropbox{}, tt.token)

			_, err := client.ListFolder(context.Background(), tt.path)
			if err == nil {
				t.Fatal("ListFolder() expected error")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("ListFolder() error = %T, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("APIError.StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Summary != tt.summary {
				t.Errorf("APIError.Summary = %q, want %q", apiErr.Summary, tt.summary)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	m := &mockDropbox{downloadArgs: make(chan string, 1)}
	client := newTestClient(t, m, testToken)

	body, err := client.Download(context.Background(), "/a.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "0123456789" {
		t.Errorf("Download() content = %q, want %q", data, "0123456789")
	}

	if arg := <-m.downloadArgs; arg != `{"path":"/a.txt"}` {
		t.Errorf("Dropbox-API-Arg = %s, want {\"path\":\"/a.txt\"}", arg)
	}
}

func TestDownloadError(t *testing.T) {
	client := newTestClient(t, &mockDropbox{}, testToken)

	_, err := client.Download(context.Background(), "/missing.txt")
	if err == nil {
		t.Fatal("Download() expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Download() error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Summary != "path/not_found/" {
		t.Errorf("Download() error = %v, want 409 path/not_found/", apiErr)
	}
}

func TestHeaderSafeJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ASCII", `{"path":"/a.txt"}`, `{"path":"/a.txt"}`},
		{"Latin", `{"path":"/café"}`, `{"path":"/caf\u00e9"}`},
		{"Astral", `{"path":"/😀"}`, `{"path":"/\ud83d\ude00"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := headerSafeJSON([]byte(tt.input))
			if got != tt.expected {
				t.Errorf("headerSafeJSON(%s) = %s, want %s", tt.input, got, tt.expected)
			}
			if strings.ContainsFunc(got, func(r rune) bool { return r >= 0x80 }) {
				t.Errorf("headerSafeJSON(%s) contains non-ASCII output", tt.input)
			}

			var decoded, original map[string]string
			json.Unmarshal([]byte(got), &decoded)
			json.Unmarshal([]byte(tt.input), &original)
			if decoded["path"] != original["path"] {
				t.Errorf("escaped path decodes to %q, want %q", decoded["path"], original["path"])
			}
		})
	}
}
