package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"

	"message-board/internal/models"
	"message-board/internal/validation"
)

const maxFormBytes = 1 << 20

// hasContentLength reports whether the client declared a body length.
// A request without the header and without chunking arrives with
// ContentLength 0, so the header itself is checked as well.
func hasContentLength(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	return r.ContentLength == 0 && r.Header.Get("Content-Length") != ""
}

func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) error {
	if !hasContentLength(r) {
		sendPlainText(w, http.StatusLengthRequired, "411 Length Required: Missing Content-Length header.")
		return nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendPlainText(w, http.StatusRequestEntityTooLarge, "413 Request Entity Too Large.")
			return nil
		}
		log.Printf("[ROUTER] Failed to read form body: %v", err)
		sendPlainText(w, http.StatusBadRequest, "400 Bad request. Reason: unreadable request body.")
		return nil
	}

	fields, err := url.ParseQuery(string(body))
	if err != nil {
		sendPlainText(w, http.StatusBadRequest, "400 Bad request. Reason: malformed form data.")
		return nil
	}

	entry, err := validation.ValidateForm(fields)
	if err != nil {
		sendPlainText(w, http.StatusBadRequest, "400 Bad request. Reason: "+err.Error())
		return nil
	}

	saved, err := rt.repo.Save(entry)
	if err != nil {
		return err
	}

	if rt.feed != nil {
		at, err := models.ParseTimestamp(saved.Timestamp)
		if err == nil {
			rt.feed.Publish(displayMessage(at, entry, rt.now()))
		}
	}

	http.Redirect(w, r, "/read", http.StatusFound)
	return nil
}
