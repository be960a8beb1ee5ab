package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"message-board/internal/validation"
)

const (
	pagesDir        = "pages"
	htmlContentType = "text/html; charset=utf-8"
)

// assetDirs maps a static asset extension to its directory under static/.
var assetDirs = map[string]string{
	".css": "styles",
	".ico": "images",
	".js":  "scripts",
	".png": "images",
	".jpg": "images",
}

func writeContent(w http.ResponseWriter, code int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	w.Write(body)
}

// resolvePath makes p absolute and follows symlinks. A missing final
// element is allowed so the caller can still tell "not found" apart from
// "outside the base".
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, nil
		}
		return "", err
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// resolveInside resolves dir/name and reports whether the result stays
// inside the resolved dir.
func resolveInside(dir, name string) (string, bool, error) {
	base, err := resolvePath(dir)
	if err != nil {
		return "", false, err
	}
	target, err := resolvePath(filepath.Join(base, name))
	if err != nil {
		return "", false, err
	}
	return target, validation.IsSafePath(base, target), nil
}

// sendHTMLPage serves a static page from static/pages. Missing pages get
// the rendered 404; read failures go to the error envelope.
func (rt *Router) sendHTMLPage(name string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		target, safe, err := resolveInside(filepath.Join(rt.staticDir, pagesDir), name)
		if err != nil {
			return fmt.Errorf("resolve page %s: %w", name, err)
		}
		if !safe {
			log.Printf("[ROUTER] Blocked page outside static directory: %s", target)
			sendForbidden(w)
			return nil
		}

		content, err := os.ReadFile(target)
		if errors.Is(err, fs.ErrNotExist) {
			rt.sendNotFoundPage(w)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read page: %w", err)
		}

		writeContent(w, http.StatusOK, htmlContentType, content)
		return nil
	}
}

// sendAssetFile serves a file from the directory assetDirs assigns to ext.
// Unlike pages, every failure here is answered in plain text.
func (rt *Router) sendAssetFile(w http.ResponseWriter, filename, ext string) {
	dir := filepath.Join(rt.staticDir, assetDirs[ext])

	target, safe, err := resolveInside(dir, filename)
	if err != nil {
		log.Printf("[ROUTER] Error while resolving asset file. File: %s. %v", filename, err)
		sendPlainText(w, http.StatusInternalServerError, "500 Internal server error.")
		return
	}
	if !safe {
		log.Printf("[ROUTER] Blocked asset outside %s: %s", dir, target)
		sendForbidden(w)
		return
	}

	content, err := os.ReadFile(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sendPlainText(w, http.StatusNotFound, "404 File not found")
		return
	case err != nil:
		log.Printf("[ROUTER] Error while reading asset file. File: %s. %v", target, err)
		sendPlainText(w, http.StatusInternalServerError, "500 Internal server error.")
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(target))
	if contentType == "" {
		contentType = "text/plain"
	}
	writeContent(w, http.StatusOK, contentType, content)
}
