// Package archive retains run outputs after a run ends: a local retention
// copy, an object-storage upload, or both.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/slambench/runner/internal/files"
	"github.com/slambench/runner/internal/repository/dto"
	pkgfiles "github.com/slambench/runner/pkg/files"
)

type Archiver struct {
	storage   *files.FileStorage
	retainDir string
}

// New builds an archiver. Either destination may be absent; storage nil
// skips uploads, retainDir empty skips local copies.
func New(storage *files.FileStorage, retainDir string) *Archiver {
	return &Archiver{storage: storage, retainDir: retainDir}
}

// Archive stores the run log and, when present, the artifact. It returns
// the destinations written, for inclusion in the run report.
func (a *Archiver) Archive(ctx context.Context, req *dto.RunRequest) ([]string, error) {
	var stored []string
	for _, p := range []string{req.LogFilePath(), req.ArtifactPath()} {
		if _, err := os.Stat(p); err != nil {
			// A missing artifact is already reflected in the verdict.
			continue
		}
		name := filepath.Base(p)
		if a.retainDir != "" {
			dst := filepath.Join(a.retainDir, fmt.Sprintf("%05d", req.RunIndex), name)
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return stored, errors.Wrap(err, "failed to create retention dir")
			}
			if err := pkgfiles.CopyFile(p, dst); err != nil {
				return stored, errors.Wrap(err, "failed to retain file")
			}
			stored = append(stored, dst)
		}
		if a.storage != nil {
			object := fmt.Sprintf("%05d/%s", req.RunIndex, name)
			if err := a.storage.PutFile(ctx, object, p); err != nil {
				return stored, errors.Wrap(err, "failed to upload file")
			}
			stored = append(stored, object)
		}
	}
	return stored, nil
}
