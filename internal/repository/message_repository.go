package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"message-board/internal/models"
)

type MessageRepo interface {
	ReadAll() (map[string]models.Entry, error)
	Save(entry models.Entry) (models.Message, error)
	Trim(keep int) (int, error)
}

// StorageError reports a failure of the message file. Err holds the
// underlying cause for logs; it is never shown to clients.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

var errIsDirectory = errors.New("storage path is a directory")

// FileMessageRepo keeps every message in a single JSON object keyed by
// timestamp. All access goes through mu, so a save's read-merge-write
// cycle is never interleaved with another save or a read.
type FileMessageRepo struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewMessagesRepo fails unless path already exists as a regular file that
// can be opened for both reading and writing.
func NewMessagesRepo(path string) (*FileMessageRepo, error) {
	log.Println("[REPO INFO] Initializing message storage...")

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &StorageError{Op: "init", Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to initialize storage file. File: %s. File either does not exist or has different name or path.", abs)
		return nil, &StorageError{Op: "init", Path: abs, Err: err}
	}
	if info.IsDir() {
		return nil, &StorageError{Op: "init", Path: abs, Err: errIsDirectory}
	}

	f, err := os.OpenFile(abs, os.O_RDWR, 0)
	if err != nil {
		log.Printf("[REPO ERROR] Storage file is not readable or writable. File: %s: %v", abs, err)
		return nil, &StorageError{Op: "init", Path: abs, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &StorageError{Op: "init", Path: abs, Err: err}
	}

	log.Printf("[REPO INFO] Message storage ready: %s", abs)
	return &FileMessageRepo{
		path: abs,
		now:  time.Now,
	}, nil
}

// Path returns the absolute location of the message file.
func (r *FileMessageRepo) Path() string { return r.path }

// ReadAll returns every stored entry keyed by its timestamp. An empty or
// whitespace-only file is an empty store.
func (r *FileMessageRepo) ReadAll() (map[string]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.readAll()
}

// Save stamps entry with the current UTC time and rewrites the whole file
// with the new entry merged in.
func (r *FileMessageRepo) Save(entry models.Entry) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timestamp := models.FormatTimestamp(r.now())

	entries, err := r.readAll()
	if err != nil {
		return models.Message{}, err
	}

	if _, exists := entries[timestamp]; exists {
		log.Printf("[REPO INFO] Timestamp collision at %s, overwriting previous entry", timestamp)
	}
	entries[timestamp] = entry

	if err := r.writeAll(entries); err != nil {
		return models.Message{}, err
	}

	return models.Message{
		Timestamp: timestamp,
		Username:  entry.Username,
		Message:   entry.Message,
	}, nil
}

// Trim keeps the newest keep entries and drops the rest, returning how
// many were removed. Keys that do not parse as timestamps count as oldest.
// keep <= 0 leaves the file untouched.
func (r *FileMessageRepo) Trim(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readAll()
	if err != nil {
		return 0, err
	}
	if len(entries) <= keep {
		return 0, nil
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, newestFirst)

	kept := make(map[string]models.Entry, keep)
	for _, key := range keys[:keep] {
		kept[key] = entries[key]
	}

	if err := r.writeAll(kept); err != nil {
		return 0, err
	}

	removed := len(entries) - keep
	log.Printf("[REPO INFO] Trimmed %d messages, %d kept", removed, keep)
	return removed, nil
}

func newestFirst(a, b string) int {
	ta, errA := models.ParseTimestamp(a)
	tb, errB := models.ParseTimestamp(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return tb.Compare(ta)
}

func (r *FileMessageRepo) readAll() (map[string]models.Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		log.Printf("[REPO ERROR] Error while reading storage file. File: %s: %v", r.path, err)
		return nil, &StorageError{Op: "read", Path: r.path, Err: err}
	}

	entries := make(map[string]models.Entry)

	content := bytes.TrimSpace(data)
	if len(content) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(content, &entries); err != nil {
		log.Printf("[REPO ERROR] Invalid format or corrupted JSON file. File: %s: %v", r.path, err)
		return nil, &StorageError{Op: "decode", Path: r.path, Err: err}
	}

	// a literal null decodes into a nil map
	if entries == nil {
		entries = make(map[string]models.Entry)
	}

	return entries, nil
}

// writeAll overwrites the content of the existing file rather than
// replacing the file, and truncates whatever a longer previous write left.
func (r *FileMessageRepo) writeAll(entries map[string]models.Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		log.Printf("[REPO ERROR] Storage data could not be serialized. File: %s: %v", r.path, err)
		return &StorageError{Op: "encode", Path: r.path, Err: err}
	}

	f, err := os.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to save data to storage file. File: %s: %v", r.path, err)
		return &StorageError{Op: "write", Path: r.path, Err: err}
	}

	if _, err := f.WriteAt(buf.Bytes(), 0); err != nil {
		f.Close()
		log.Printf("[REPO ERROR] Failed to save data to storage file. File: %s: %v", r.path, err)
		return &StorageError{Op: "write", Path: r.path, Err: err}
	}

	if err := f.Truncate(int64(buf.Len())); err != nil {
		f.Close()
		log.Printf("[REPO ERROR] Failed to truncate storage file. File: %s: %v", r.path, err)
		return &StorageError{Op: "truncate", Path: r.path, Err: err}
	}

	if err := f.Close(); err != nil {
		return &StorageError{Op: "close", Path: r.path, Err: err}
	}

	return nil
}
