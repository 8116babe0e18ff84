package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptStore persists uploaded receipt documents
type ReceiptStore interface {
	// Save writes one receipt and returns its storage key
	Save(projectID, mimeType string, content []byte) (string, error)

	// Load reads a previously stored receipt by key
	Load(key string) ([]byte, error)
}

var extByMIME = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// LocalReceiptStore keeps receipts on the local filesystem, one directory per
// project. Keys are relative paths under the base directory.
type LocalReceiptStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalReceiptStore creates a filesystem-backed receipt store
func NewLocalReceiptStore(baseDir string, logger *zap.Logger) *LocalReceiptStore {
	return &LocalReceiptStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes the receipt under <base>/<project>/<uuid><ext> and returns the
// relative key recorded on the expense row
func (s *LocalReceiptStore) Save(projectID, mimeType string, content []byte) (string, error) {
	ext, ok := extByMIME[mimeType]
	if !ok {
		return "", fmt.Errorf("unsupported receipt type: %s", mimeType)
	}
	if projectID == "" {
		projectID = "unassigned"
	}

	key := filepath.Join(projectID, uuid.NewString()+ext)
	fullPath := filepath.Join(s.baseDir, key)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create receipt directory: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write receipt",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}

	s.logger.Debug("Receipt stored",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return key, nil
}

// Load reads one stored receipt
func (s *LocalReceiptStore) Load(key string) ([]byte, error) {
	fullPath := filepath.Join(s.baseDir, key)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	return data, nil
}

// validatePath rejects keys that escape the base directory
func (s *LocalReceiptStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes receipt directory: %s", fullPath)
	}
	return nil
}
