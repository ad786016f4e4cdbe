// Package upload stores complaint attachments on the local filesystem.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"complaints/backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize caps a single attachment.
const MaxFileSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds the maximum size")
)

// File is an incoming attachment, independent of the transport it came from.
type File struct {
	Name    string
	Content io.Reader
}

// Result describes a stored file.
type Result struct {
	FileName string
	FilePath string
	FileType models.FileType
	MimeType string
	FileSize int64
}

var allowedMimes = map[models.FileType][]string{
	models.FileTypeImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	models.FileTypePDF:   {"application/pdf"},
}

// LocalUploader writes files below BaseDir.
type LocalUploader struct {
	BaseDir string
}

func NewLocalUploader(baseDir string) *LocalUploader {
	return &LocalUploader{BaseDir: baseDir}
}

// Upload sniffs the content type, checks it against fileType and stores the
// file under destination (relative to BaseDir) with a generated name.
func (u *LocalUploader) Upload(ctx context.Context, f File, destination string, fileType models.FileType) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f.Content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !isAllowed(fileType, mime) {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedType, f.Name, mime.String())
	}

	relPath := filepath.Join(destination, uuid.New().String()+mime.Extension())
	absPath := filepath.Join(u.BaseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return nil, err
	}

	return &Result{
		FileName: filepath.Base(f.Name),
		FilePath: filepath.ToSlash(relPath),
		FileType: fileType,
		MimeType: mime.String(),
		FileSize: int64(len(data)),
	}, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (u *LocalUploader) Remove(ctx context.Context, path string) error {
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("refusing to remove %q outside the upload directory", path)
	}
	err := os.Remove(filepath.Join(u.BaseDir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func isAllowed(fileType models.FileType, mime *mimetype.MIME) bool {
	for _, allowed := range allowedMimes[fileType] {
		if mime.Is(allowed) {
			return true
		}
	}
	return false
}
