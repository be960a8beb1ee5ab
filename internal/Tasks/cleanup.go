package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

type Trimmer interface {
	Trim(keep int) (int, error)
}

// MessageCleaner caps the message file at limit entries on a cron schedule.
type MessageCleaner struct {
	repo     Trimmer
	limit    int
	schedule string
	cron     *cron.Cron
}

func NewMessageCleaner(repo Trimmer, limit int, schedule string) *MessageCleaner {
	return &MessageCleaner{
		repo:     repo,
		limit:    limit,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the job. It is a no-op when limit is not positive.
func (t *MessageCleaner) Start() error {
	if t.limit <= 0 {
		log.Println("[WORKER] Message retention disabled")
		return nil
	}

	if _, err := t.cron.AddFunc(t.schedule, t.RunOnce); err != nil {
		log.Printf("[WORKER] Error scheduling cron: %v", err)
		return fmt.Errorf("schedule retention %q: %w", t.schedule, err)
	}

	t.cron.Start()
	log.Printf("[WORKER] Message retention scheduled (%s), keeping %d messages", t.schedule, t.limit)
	return nil
}

// Stop prevents new runs; the returned context is done once a running job finishes.
func (t *MessageCleaner) Stop() context.Context {
	return t.cron.Stop()
}

func (t *MessageCleaner) RunOnce() {
	removed, err := t.repo.Trim(t.limit)
	if err != nil {
		log.Printf("[WORKER] Message cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[WORKER] Message cleanup removed %d old messages", removed)
	}
}
