package api

import (
	"net/http"
	"path"
	"strings"
	"time"

	"message-board/internal/models"
	"message-board/internal/repository"
)

const pageSuffix = ".html"

// Publisher receives every message right after it is saved.
type Publisher interface {
	Publish(msg models.DisplayMessage)
}

// Router dispatches every request of the board. It holds no per-request
// state; the repository is the only shared mutable resource.
type Router struct {
	repo      repository.MessageRepo
	renderer  Renderer
	staticDir string
	feed      Publisher
	live      http.Handler
	now       func() time.Time
}

type Option func(*Router)

// WithLiveFeed publishes saved messages to p and serves live on /ws.
func WithLiveFeed(p Publisher, live http.Handler) Option {
	return func(rt *Router) {
		rt.feed = p
		rt.live = live
	}
}

func WithClock(now func() time.Time) Option {
	return func(rt *Router) { rt.now = now }
}

func NewRouter(repo repository.MessageRepo, renderer Renderer, staticDir string, opts ...Option) *Router {
	rt := &Router{
		repo:      repo,
		renderer:  renderer,
		staticDir: staticDir,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		rt.handleGet(w, r)
	case http.MethodPost:
		rt.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		sendPlainText(w, http.StatusMethodNotAllowed, "405 Method Not Allowed")
	}
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path

	// clients never see raw page file names
	if strings.HasSuffix(reqPath, pageSuffix) {
		// a leading "//" or "/\" would make Location point at another host
		pretty := "/" + strings.TrimLeft(strings.TrimSuffix(reqPath, pageSuffix), "/\\")
		http.Redirect(w, r, pretty, http.StatusMovedPermanently)
		return
	}

	switch reqPath {
	case "/":
		rt.handleServerErrors("sendIndexPage", rt.sendHTMLPage("index.html"), ErrorMessages{})(w, r)
	case "/message":
		rt.handleServerErrors("sendMessagePage", rt.sendHTMLPage("message.html"), ErrorMessages{})(w, r)
	case "/read":
		rt.handleServerErrors("sendReadPage", rt.sendReadPage, ErrorMessages{
			Storage: "Messages are temporarily unavailable. Please try again later.",
		})(w, r)
	case "/health":
		sendPlainText(w, http.StatusOK, "OK")
	case "/ws":
		if rt.live == nil {
			rt.sendNotFoundPage(w)
			return
		}
		rt.live.ServeHTTP(w, r)
	default:
		ext := path.Ext(reqPath)
		if _, ok := assetDirs[ext]; ok {
			rt.sendAssetFile(w, path.Base(reqPath), ext)
			return
		}
		rt.sendNotFoundPage(w)
	}
}

func (rt *Router) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/message" {
		rt.sendNotFoundPage(w)
		return
	}
	rt.handleServerErrors("handleSubmit", rt.handleSubmit, ErrorMessages{
		Storage: "Your message could not be saved. Please try again later.",
	})(w, r)
}
