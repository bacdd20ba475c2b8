// Package storage keeps uploaded invoice files on local disk and
// hands out the public URLs they are served under.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

type Disk struct {
	dir       string
	publicUrl string
}

func NewDisk(dir, publicUrl string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Disk{
		dir:       dir,
		publicUrl: strings.TrimRight(publicUrl, "/"),
	}, nil
}

func (d *Disk) Dir() string {
	return d.dir
}

// Put writes data under <owner>/<uuid>-<name> and returns its public URL
func (d *Disk) Put(ctx context.Context, owner, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder := safeName(owner)
	file := fmt.Sprintf("%s-%s", uuid.NewString(), safeName(name))

	if err := os.MkdirAll(filepath.Join(d.dir, folder), 0755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, folder, file), data, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return d.publicUrl + "/" + path.Join(folder, file), nil
}

// Delete removes a file previously returned by Put; unknown URLs are ignored
func (d *Disk) Delete(_ context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, d.publicUrl+"/")
	if !ok || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "file"
	}
	return s
}
