package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"message-board/internal/models"
)

type readPage struct {
	Messages []models.DisplayMessage
}

type datedMessage struct {
	at  time.Time
	msg models.DisplayMessage
}

// AssembleMessages turns stored entries into display messages, newest
// first. Entries whose key is not a storage timestamp are skipped.
func AssembleMessages(entries map[string]models.Entry, now time.Time) []models.DisplayMessage {
	dated := make([]datedMessage, 0, len(entries))
	for key, entry := range entries {
		at, err := models.ParseTimestamp(key)
		if err != nil {
			log.Printf("[ROUTER] Skipping message with malformed timestamp %q: %v", key, err)
			continue
		}
		dated = append(dated, datedMessage{at: at, msg: displayMessage(at, entry, now)})
	}

	slices.SortFunc(dated, func(a, b datedMessage) int {
		return b.at.Compare(a.at)
	})

	messages := make([]models.DisplayMessage, len(dated))
	for i, d := range dated {
		messages[i] = d.msg
	}
	return messages
}

func displayMessage(at time.Time, entry models.Entry, now time.Time) models.DisplayMessage {
	username := entry.Username
	if username == "" {
		username = models.DefaultUsername
	}
	message := entry.Message
	if message == "" {
		message = models.DefaultMessage
	}

	return models.DisplayMessage{
		Timestamp: at.UTC().Format(models.DisplayTimestampLayout),
		Username:  username,
		Message:   message,
		IsNew:     now.Sub(at) < models.FreshnessWindow,
	}
}

func (rt *Router) sendReadPage(w http.ResponseWriter, r *http.Request) error {
	entries, err := rt.repo.ReadAll()
	if err != nil {
		return err
	}

	messages := AssembleMessages(entries, rt.now())

	var buf bytes.Buffer
	if err := rt.renderer.Render(&buf, "read.html", readPage{Messages: messages}); err != nil {
		return fmt.Errorf("render read page: %w", err)
	}

	writeContent(w, http.StatusOK, htmlContentType, buf.Bytes())
	return nil
}
