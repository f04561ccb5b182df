package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"docchat/internal/domain"
)

// fileNamePattern is the strict allow-list for stored file names.
var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ -]*$`)

// ValidFileName reports whether a client-supplied file name is safe to use
// as an on-disk name. Path separators and traversal patterns are rejected
// before any filesystem access.
func ValidFileName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return fileNamePattern.MatchString(name)
}

// FileStore keeps the raw bytes of uploaded documents on disk, one
// directory per session. Stored files are immutable; a re-upload of the
// same name overwrites the previous copy.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Save writes an uploaded file under the session's directory.
func (s *FileStore) Save(sessionID, fileName string, data []byte) (string, error) {
	if !ValidFileName(sessionID) {
		return "", fmt.Errorf("%w: invalid session id %q", domain.ErrInvalidRequest, sessionID)
	}
	if !ValidFileName(fileName) {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidRequest, fileName)
	}

	dir := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create storage directory: %v", domain.ErrStorage, err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: write file: %v", domain.ErrStorage, err)
	}
	return path, nil
}

// Path resolves a stored file, validating the name before touching the
// filesystem. Returns ErrInvalidRequest for unsafe names and ErrNotFound
// when no such file was stored.
func (s *FileStore) Path(sessionID, fileName string) (string, error) {
	if !ValidFileName(sessionID) {
		return "", fmt.Errorf("%w: invalid session id %q", domain.ErrInvalidRequest, sessionID)
	}
	if !ValidFileName(fileName) {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidRequest, fileName)
	}

	path := filepath.Join(s.baseDir, sessionID, fileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: stat file: %v", domain.ErrStorage, err)
	}
	return path, nil
}
