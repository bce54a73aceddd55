package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/resumatch/internal/models"
)

// SaveUpload copies src into dir under a fresh random name that keeps the
// lowercased extension of filename. It returns the new file's path.
func SaveUpload(dir, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create upload dir: %v", models.ErrStorage, err)
	}
	dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%w: create upload: %v", models.ErrStorage, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: write upload: %v", models.ErrStorage, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: close upload: %v", models.ErrStorage, err)
	}
	return dst, nil
}
