package validation

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"message-board/internal/models"
)

const emptyFormReason = "Missing form fields values. Form can't be empty."

// ValidationError carries the reason shown to the client with a 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ValidateForm trims username and message and requires at least one of
// them to be non-empty. Length and character set are not constrained.
func ValidateForm(fields url.Values) (models.Entry, error) {
	username := strings.TrimSpace(fields.Get("username"))
	message := strings.TrimSpace(fields.Get("message"))

	if username == "" && message == "" {
		return models.Entry{}, &ValidationError{Reason: emptyFormReason}
	}

	return models.Entry{Username: username, Message: message}, nil
}

// IsSafePath reports whether target lies inside base. Both paths must
// already be resolved by the caller; a target that still carries a ".."
// segment is rejected outright. Containment is decided per path segment,
// so "/base-evil" is not inside "/base".
func IsSafePath(basePath, targetPath string) bool {
	if basePath == "" || targetPath == "" {
		return false
	}
	if slices.Contains(strings.Split(filepath.ToSlash(targetPath), "/"), "..") {
		return false
	}

	rel, err := filepath.Rel(basePath, targetPath)
	if err != nil {
		return false
	}
	if filepath.IsAbs(rel) {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
