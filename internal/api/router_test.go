package api

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"message-board/internal/models"
	"message-board/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templatesDir = "../../web/templates"

type testBoard struct {
	router    *Router
	repo      *repository.FileMessageRepo
	staticDir string
	feed      *recordingFeed
}

type recordingFeed struct {
	published []models.DisplayMessage
}

func (f *recordingFeed) Publish(msg models.DisplayMessage) {
	f.published = append(f.published, msg)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestBoard(t *testing.T) *testBoard {
	t.Helper()
	root := t.TempDir()

	staticDir := filepath.Join(root, "static")
	writeFile(t, filepath.Join(staticDir, "pages", "index.html"), "<h1>Message Board</h1>")
	writeFile(t, filepath.Join(staticDir, "pages", "message.html"), `<form method="post" action="/message"></form>`)
	writeFile(t, filepath.Join(staticDir, "styles", "main.css"), "body { margin: 0; }")
	writeFile(t, filepath.Join(staticDir, "scripts", "app.js"), "console.log('hi');")
	writeFile(t, filepath.Join(staticDir, "images", "cat.png"), "\x89PNG\r\n\x1a\n")
	writeFile(t, filepath.Join(root, "secret.txt"), "top secret")

	storagePath := filepath.Join(root, "data.json")
	writeFile(t, storagePath, "")
	repo, err := repository.NewMessagesRepo(storagePath)
	require.NoError(t, err)

	renderer, err := NewTemplateRenderer(templatesDir)
	require.NoError(t, err)

	feed := &recordingFeed{}
	router := NewRouter(repo, renderer, staticDir, WithLiveFeed(feed, nil))

	return &testBoard{router: router, repo: repo, staticDir: staticDir, feed: feed}
}

func (b *testBoard) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func (b *testBoard) get(t *testing.T, target string) *httptest.ResponseRecorder {
	return b.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func formRequest(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", fmt.Sprint(len(body)))
	return req
}

func TestGetPages(t *testing.T) {
	b := newTestBoard(t)

	rec := b.get(t, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, htmlContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>Message Board</h1>", rec.Body.String())
	assert.Equal(t, fmt.Sprint(rec.Body.Len()), rec.Header().Get("Content-Length"))

	rec = b.get(t, "/message")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/message"`)
}

func TestPageFileNamesRedirect(t *testing.T) {
	b := newTestBoard(t)

	cases := map[string]string{
		"/message.html":     "/message",
		"/index.html":       "/index",
		"/.html":            "/",
		"/nested/page.html": "/nested/page",
		"/read.html?x=1":    "/read",
	}
	for target, location := range cases {
		rec := b.get(t, target)
		assert.Equal(t, http.StatusMovedPermanently, rec.Code, target)
		assert.Equal(t, location, rec.Header().Get("Location"), target)
	}

	offHost := map[string]string{
		"//evil.example.html":  "/evil.example",
		"///evil.example.html": "/evil.example",
		"/\\evil.example.html": "/evil.example",
	}
	for reqPath, location := range offHost {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = reqPath
		rec := b.do(t, req)
		assert.Equal(t, http.StatusMovedPermanently, rec.Code, reqPath)
		assert.Equal(t, location, rec.Header().Get("Location"), reqPath)
	}
}

func TestPageRedirectStaysOnHost(t *testing.T) {
	b := newTestBoard(t)
	srv := httptest.NewServer(b.router)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "GET //evil.example.html HTTP/1.1\r\nHost: board.local\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Equal(t, "/evil.example", location)
	assert.False(t, strings.HasPrefix(location, "//"))
}

func TestRouterDoesNotLogEveryRequest(t *testing.T) {
	b := newTestBoard(t)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	rec := b.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}

func TestMissingPageRendersNotFound(t *testing.T) {
	b := newTestBoard(t)

	rec := b.get(t, "/missing.html")
	require.Equal(t, http.StatusMovedPermanently, rec.Code)

	rec = b.get(t, rec.Header().Get("Location"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, htmlContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "404")
	assert.Contains(t, rec.Body.String(), "Page not found.")
}

func TestMissingStaticPageRendersNotFound(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, os.Remove(filepath.Join(b.staticDir, "pages", "message.html")))

	rec := b.get(t, "/message")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")
}

func TestUnreadablePageGoesThroughEnvelope(t *testing.T) {
	b := newTestBoard(t)
	index := filepath.Join(b.staticDir, "pages", "index.html")
	require.NoError(t, os.Remove(index))
	require.NoError(t, os.Mkdir(index, 0o755))

	rec := b.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), serverErrorMessage)
	assert.NotContains(t, rec.Body.String(), b.staticDir)
}

func TestAssets(t *testing.T) {
	b := newTestBoard(t)

	rec := b.get(t, "/styles/main.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "body { margin: 0; }", rec.Body.String())
	assert.Equal(t, "19", rec.Header().Get("Content-Length"))

	// the directory comes from the extension, not from the url
	rec = b.get(t, "/anywhere/cat.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "image/png")

	rec = b.get(t, "/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
}

func TestMissingAssetIsPlainText(t *testing.T) {
	b := newTestBoard(t)

	rec := b.get(t, "/styles/absent.css")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 File not found", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestUnreadableAssetIsPlainServerError(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, os.Mkdir(filepath.Join(b.staticDir, "images", "folder.png"), 0o755))

	rec := b.get(t, "/folder.png")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "500 Internal server error.", rec.Body.String())
}

func TestSymlinkOutsideBaseIsForbidden(t *testing.T) {
	b := newTestBoard(t)
	secret := filepath.Join(filepath.Dir(b.staticDir), "secret.txt")
	if err := os.Symlink(secret, filepath.Join(b.staticDir, "images", "evil.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	rec := b.get(t, "/evil.png")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "403 Forbidden", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "top secret")
}

func TestSymlinkedPageOutsideBaseIsForbidden(t *testing.T) {
	b := newTestBoard(t)
	index := filepath.Join(b.staticDir, "pages", "index.html")
	require.NoError(t, os.Remove(index))
	if err := os.Symlink(filepath.Join(filepath.Dir(b.staticDir), "secret.txt"), index); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	rec := b.get(t, "/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	b := newTestBoard(t)

	for _, target := range []string{"/nope", "/file.txt", "/ws"} {
		rec := b.get(t, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "404", target)
	}
}

func TestHealth(t *testing.T) {
	b := newTestBoard(t)

	rec := b.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestLiveRoute(t *testing.T) {
	b := newTestBoard(t)
	b.router.live = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := b.get(t, "/ws")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(t, httptest.NewRequest(http.MethodDelete, "/message", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD, POST", rec.Header().Get("Allow"))
}

func TestPostThenRead(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(t, formRequest("/message", "username=Alice&message=Hi"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/read", rec.Header().Get("Location"))

	entries, err := b.repo.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	for _, entry := range entries {
		assert.Equal(t, models.Entry{Username: "Alice", Message: "Hi"}, entry)
	}

	require.Len(t, b.feed.published, 1)
	assert.Equal(t, "Alice", b.feed.published[0].Username)
	assert.True(t, b.feed.published[0].IsNew)

	rec = b.get(t, "/read")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alice")
	assert.Contains(t, body, "Hi")
	assert.Contains(t, body, "message--new")
}

func TestPostTrimsAndDecodes(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(t, formRequest("/message", "username=+Bob+&message=50%25+off%21+%26+more"))
	require.Equal(t, http.StatusFound, rec.Code)

	entries, err := b.repo.ReadAll()
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, "Bob", entry.Username)
		assert.Equal(t, "50% off! & more", entry.Message)
	}
}

func TestPostEmptyFormIsRejected(t *testing.T) {
	b := newTestBoard(t)

	for _, body := range []string{"", "username=&message=", "username=+++&message=%20%09"} {
		rec := b.do(t, formRequest("/message", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "400 Bad request. Reason: Missing form fields values. Form can't be empty.", rec.Body.String())
	}

	entries, err := b.repo.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, b.feed.published)
}

func TestPostMalformedForm(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(t, formRequest("/message", "username=%zz"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed form data")
}

func TestPostWithoutContentLength(t *testing.T) {
	b := newTestBoard(t)

	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	rec := b.do(t, req)
	assert.Equal(t, http.StatusLengthRequired, rec.Code)
	assert.Equal(t, "411 Length Required: Missing Content-Length header.", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("username=Alice"))
	req.ContentLength = -1
	rec = b.do(t, req)
	assert.Equal(t, http.StatusLengthRequired, rec.Code)
}

func TestPostTooLarge(t *testing.T) {
	b := newTestBoard(t)

	body := "message=" + strings.Repeat("a", maxFormBytes)
	rec := b.do(t, formRequest("/message", body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPostToUnknownPath(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(t, formRequest("/elsewhere", "username=Alice"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")
}

func TestStorageRemovedAfterStartup(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, os.Remove(b.repo.Path()))

	rec := b.do(t, formRequest("/message", "username=Alice&message=Hi"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, htmlContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "500")
	assert.Contains(t, rec.Body.String(), "Your message could not be saved.")
	assert.NotContains(t, rec.Body.String(), b.repo.Path())
	assert.Empty(t, b.feed.published)

	rec = b.get(t, "/read")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Messages are temporarily unavailable.")
}

func TestReadPageOrdering(t *testing.T) {
	b := newTestBoard(t)
	writeFile(t, b.repo.Path(), `{
  "2024-05-01 12:00:00.000002": {"username": "second", "message": "b"},
  "2024-05-01 12:00:00.000001": {"username": "first", "message": "a"},
  "2024-05-01 12:00:00.000003": {"username": "", "message": ""}
}`)

	rec := b.get(t, "/read")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	anon := strings.Index(body, models.DefaultUsername)
	second := strings.Index(body, "second")
	first := strings.Index(body, "first")
	require.True(t, anon >= 0 && second >= 0 && first >= 0)
	assert.Less(t, anon, second)
	assert.Less(t, second, first)
	assert.Contains(t, body, models.DefaultMessage)
	assert.NotContains(t, body, "message--new")
}

func TestEnvelopeFailureKinds(t *testing.T) {
	b := newTestBoard(t)

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"storage", &repository.StorageError{Op: "read", Path: "/data.json", Err: os.ErrNotExist}, "storage text"},
		{"os", fmt.Errorf("open: %w", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}), "os text"},
		{"syscall", os.NewSyscallError("write", errors.New("broken pipe")), "os text"},
		{"other", errors.New("boom"), serverErrorMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := b.router.handleServerErrors(tc.name, func(w http.ResponseWriter, r *http.Request) error {
				return tc.err
			}, ErrorMessages{Storage: "storage text", OS: "os text"})

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.NotContains(t, rec.Body.String(), "/data.json")
		})
	}
}

func TestEnvelopeDefaultMessages(t *testing.T) {
	b := newTestBoard(t)
	h := b.router.handleServerErrors("test", func(w http.ResponseWriter, r *http.Request) error {
		return &repository.StorageError{Op: "read", Err: io.ErrUnexpectedEOF}
	}, ErrorMessages{})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), serverErrorMessage)
}

type brokenRenderer struct{}

func (brokenRenderer) Render(w io.Writer, name string, data any) error {
	return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

func TestErrorPageFallsBackToPlainText(t *testing.T) {
	b := newTestBoard(t)
	b.router.renderer = brokenRenderer{}

	rec := b.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 Not Found", rec.Body.String())

	rec = b.get(t, "/read")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "500 Internal Server Error", rec.Body.String())
}

func TestTemplateRendererUnknownTemplate(t *testing.T) {
	renderer, err := NewTemplateRenderer(templatesDir)
	require.NoError(t, err)

	err = renderer.Render(io.Discard, "absent.html", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateRendererEscapesInput(t *testing.T) {
	renderer, err := NewTemplateRenderer(templatesDir)
	require.NoError(t, err)

	var sb strings.Builder
	err = renderer.Render(&sb, "read.html", readPage{Messages: []models.DisplayMessage{
		{Timestamp: "2024-01-01T00:00:00.000000+00:00", Username: "<script>x</script>", Message: "hi"},
	}})
	require.NoError(t, err)
	assert.NotContains(t, sb.String(), "<script>x</script>")
	assert.Contains(t, sb.String(), "&lt;script&gt;")
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rt := NewRouter(nil, nil, "", WithClock(func() time.Time { return fixed }))
	assert.Equal(t, fixed, rt.now())
}
