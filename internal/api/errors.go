package api

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"

	"message-board/internal/middleware"
	"message-board/internal/repository"
)

const (
	serverErrorMessage = "Something went wrong while processing your request. Please try again later."
	notFoundMessage    = "Page not found. The page you're looking for doesn't exist or might have been moved."
)

// handlerFunc is a handler that may leave a failure to the error envelope.
// It must not write to w before returning a non-nil error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorMessages overrides the generic text shown for a failure kind.
type ErrorMessages struct {
	Storage string
	OS      string
}

type errorPage struct {
	ErrorCode    int
	ErrorMessage string
}

// handleServerErrors is the single place where storage and OS failures
// become rendered 500 pages.
func (rt *Router) handleServerErrors(name string, h handlerFunc, msgs ErrorMessages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		reqID := middleware.RequestID(r.Context())

		var storageErr *repository.StorageError
		var pathErr *fs.PathError
		var syscallErr *os.SyscallError

		switch {
		case errors.As(err, &storageErr):
			log.Printf("[ROUTER] StorageError in %s (request %s): %v", name, reqID, err)
			rt.sendErrorPage(w, orDefault(msgs.Storage), http.StatusInternalServerError)
		case errors.As(err, &pathErr), errors.As(err, &syscallErr):
			log.Printf("[ROUTER] OSError in %s (request %s): %v", name, reqID, err)
			rt.sendErrorPage(w, orDefault(msgs.OS), http.StatusInternalServerError)
		default:
			log.Printf("[ROUTER] Unexpected error in %s (request %s): %v", name, reqID, err)
			rt.sendErrorPage(w, serverErrorMessage, http.StatusInternalServerError)
		}
	}
}

func orDefault(msg string) string {
	if msg == "" {
		return serverErrorMessage
	}
	return msg
}

// sendErrorPage renders error.html; if that fails the client still gets
// the status with a plain text body.
func (rt *Router) sendErrorPage(w http.ResponseWriter, message string, code int) {
	var buf bytes.Buffer
	err := rt.renderer.Render(&buf, "error.html", errorPage{ErrorCode: code, ErrorMessage: message})
	if err != nil {
		log.Printf("[ROUTER] Failed to render error page (status %d): %v", code, err)
		sendPlainText(w, code, fmt.Sprintf("%d %s", code, http.StatusText(code)))
		return
	}
	writeContent(w, code, htmlContentType, buf.Bytes())
}

func (rt *Router) sendNotFoundPage(w http.ResponseWriter) {
	rt.sendErrorPage(w, notFoundMessage, http.StatusNotFound)
}

func sendPlainText(w http.ResponseWriter, code int, body string) {
	writeContent(w, code, "text/plain; charset=utf-8", []byte(body))
}

func sendForbidden(w http.ResponseWriter) {
	sendPlainText(w, http.StatusForbidden, "403 Forbidden")
}
