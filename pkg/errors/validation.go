package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds workflow and node identifiers.
const maxIDLength = 256

// ValidateWorkflowID checks that a workflow document id is safe to use as a
// file name, a redis key suffix and a SQL parameter.
//
// Rules:
//   - not empty, at most 256 bytes
//   - no control characters
//   - no path separators or traversal sequences
func ValidateWorkflowID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidID, "workflow id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidID, "workflow id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidID, "workflow id contains invalid control characters")
		}
	}
	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidID, "workflow id contains invalid characters: %q", pattern)
		}
	}
	return nil
}

// ValidateNodeID checks a node identifier. Node ids only need to be
// non-empty, printable and bounded; they never reach the file system.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidID, "node id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidID, "node id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidID, "node id contains invalid control characters")
		}
	}
	return nil
}
