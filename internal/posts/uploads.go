package posts

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const URLPrefix = "/uploads"

var ErrInvalidFilename = errors.New("invalid image filename")

// Uploads stores post images on local disk. Two uploads with the same file
// name overwrite each other; the last write wins.
type Uploads struct {
	dir string
}

func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Uploads{dir: dir}, nil
}

func (u *Uploads) Dir() string {
	return u.dir
}

// Save writes fh under the upload dir and returns its public URL.
func (u *Uploads) Save(fh *multipart.FileHeader) (string, error) {
	name, err := cleanFilename(fh.Filename)
	if err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	log.Printf("image uploaded: %s (%d bytes)", name, fh.Size)
	return path.Join(URLPrefix, name), nil
}

// Remove deletes the file behind a URL returned by Save. A missing file is not
// an error.
func (u *Uploads) Remove(url string) error {
	name, err := cleanFilename(strings.TrimPrefix(url, URLPrefix+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func cleanFilename(name string) (string, error) {
	// Browsers on Windows may send the full client path.
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrInvalidFilename
	}
	return name, nil
}
