package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	srv    *httptest.Server
	pasted []string
	query  string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("auth_token"); err != nil || c.Value != "tok" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"unauthorized","message":"Authentication required"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"u1","name":"Ada","email":"ada@example.com"}`)
	})
	mux.HandleFunc("GET /api/clips", func(w http.ResponseWriter, r *http.Request) {
		f.query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "c1", "type": "text", "content": "zebra notes", "createdAt": now},
			{"id": "c2", "type": "image", "content": "https://cdn.test/a", "fileName": "Apple.png", "createdAt": now},
			{"id": "c3", "type": "document", "content": "https://cdn.test/b", "fileName": "manual.pdf", "createdAt": now},
		})
	})
	mux.HandleFunc("POST /api/clips", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Content string }
		json.NewDecoder(r.Body).Decode(&in)
		f.pasted = append(f.pasted, in.Content)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"new-clip","type":"text","content":"x"}`)
	})
	mux.HandleFunc("GET /api/clips/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		name := "report%20final.pdf"
		if v, ok := unsafeNames[r.PathValue("id")]; ok {
			name = v
		}
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+name)
		io.WriteString(w, "%PDF-1.4 body")
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// unsafeNames maps clip ids to encoded download names that must not escape the output directory.
var unsafeNames = map[string]string{
	"c-dotdot": "..",
	"c-dot":    ".",
	"c-slash":  "%2F",
	"c-parent": "..%2F..%2Fetc%2Fpasswd",
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWhoami(t *testing.T) {
	f := newFakeServer(t)

	out, err := run(t, "", "whoami", "--server", f.srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Ada <ada@example.com>\n", out)

	_, err = run(t, "", "whoami", "--server", f.srv.URL, "--token", "bad")
	assert.ErrorContains(t, err, "unauthorized")
}

func TestTokenFromEnvironment(t *testing.T) {
	f := newFakeServer(t)
	t.Setenv("CLIPLET_SERVER", f.srv.URL)
	t.Setenv("CLIPLET_TOKEN", "tok")

	out, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
}

func TestMissingToken(t *testing.T) {
	t.Setenv("CLIPLET_TOKEN", "")
	_, err := run(t, "", "list", "--server", "http://127.0.0.1:1")
	assert.ErrorContains(t, err, "no session token")
}

func TestList(t *testing.T) {
	f := newFakeServer(t)
	base := []string{"--server", f.srv.URL, "--token", "tok"}

	out, err := run(t, "", append([]string{"list", "--sort", "name"}, base...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "c2"), "Apple.png sorts first")
	assert.True(t, strings.HasPrefix(lines[2], "c3"))
	assert.True(t, strings.HasPrefix(lines[3], "c1"))
	assert.Equal(t, "filter=all&sort=newest", f.query)

	out, err = run(t, "", append([]string{"list", "--filter", "image", "--sort", "oldest", "--json"}, base...)...)
	require.NoError(t, err)
	assert.Equal(t, "filter=image&sort=oldest", f.query)
	var clips []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &clips))
	assert.Len(t, clips, 3)

	_, err = run(t, "", append([]string{"list", "--filter", "pictures"}, base...)...)
	assert.ErrorContains(t, err, "--filter")
	_, err = run(t, "", append([]string{"list", "--sort", "size"}, base...)...)
	assert.ErrorContains(t, err, "--sort")
}

func TestPaste(t *testing.T) {
	f := newFakeServer(t)
	base := []string{"--server", f.srv.URL, "--token", "tok"}

	out, err := run(t, "", append([]string{"paste", "hello", "world"}, base...)...)
	require.NoError(t, err)
	assert.Equal(t, "new-clip\n", out)

	_, err = run(t, "from stdin\n", append([]string{"paste"}, base...)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world", "from stdin\n"}, f.pasted)

	_, err = run(t, "  \n", append([]string{"paste"}, base...)...)
	assert.ErrorContains(t, err, "nothing to paste")
}

func TestDownload(t *testing.T) {
	f := newFakeServer(t)
	dir := t.TempDir()

	out, err := run(t, "", "download", "c3", "-o", dir, "--server", f.srv.URL, "--token", "tok")
	require.NoError(t, err)
	want := filepath.Join(dir, "report final.pdf")
	assert.Equal(t, want+"\n", out)
	b, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(b))

	out, err = run(t, "", "download", "c3", "-o", "-", "--server", f.srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDownload_UnsafeNames(t *testing.T) {
	f := newFakeServer(t)

	tests := []struct {
		id   string
		want string
	}{
		{"c-dotdot", "c-dotdot"},
		{"c-dot", "c-dot"},
		{"c-slash", "c-slash"},
		{"c-parent", "passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			dir := t.TempDir()
			out, err := run(t, "", "download", tt.id, "-o", dir, "--server", f.srv.URL, "--token", "tok")
			require.NoError(t, err)

			want := filepath.Join(dir, tt.want)
			assert.Equal(t, want+"\n", out)
			b, err := os.ReadFile(want)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.4 body", string(b))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "a.txt", localName("a.txt", "id1"))
	assert.Equal(t, "a.txt", localName("dir/a.txt", "id1"))
	assert.Equal(t, "id1", localName("", "id1"))
	assert.Equal(t, "id1", localName("..", "id1"))
	assert.Equal(t, "id1", localName("/", "id1"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\tc", 10))
	assert.Equal(t, "abcd…", preview("abcdefgh", 5))
}
