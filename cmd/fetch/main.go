// Fetches archived run outputs from object storage. Development tool,
// counterpart of the archiver's upload side.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/slambench/runner/internal/files"
	"github.com/slambench/runner/internal/repository/dto"
)

func main() {
	url := flag.String("minio-url", "localhost:9000", "object storage endpoint")
	login := flag.String("login", "minioadmin", "object storage login")
	password := flag.String("password", "minioadmin", "object storage password")
	bucket := flag.String("bucket", "runs", "bucket holding archived runs")
	runIndex := flag.Int("run-index", 0, "run index to fetch")
	artifact := flag.String("artifact", "KeyFrameTrajectory", "artifact basename")
	outDir := flag.String("out", ".", "directory receiving the fetched files")
	flag.Parse()

	storage := files.NewFileStorage(files.Config{
		Url:      *url,
		Login:    *login,
		Password: *password,
		Bucket:   *bucket,
	})

	req := &dto.RunRequest{RunIndex: *runIndex, ArtifactBaseName: *artifact}
	fetched := 0
	for _, p := range []string{req.LogFilePath(), req.ArtifactPath()} {
		name := filepath.Base(p)
		object := fmt.Sprintf("%05d/%s", *runIndex, name)
		if err := fetch(storage, object, filepath.Join(*outDir, name)); err != nil {
			log.Printf("skipping %s: %v", object, err)
			continue
		}
		fetched++
	}
	if fetched == 0 {
		log.Fatalf("no archived files found for run %05d", *runIndex)
	}
	log.Printf("fetched %d files for run %05d", fetched, *runIndex)
}

func fetch(storage *files.FileStorage, object, dst string) error {
	src, err := storage.GetFile(context.Background(), object)
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
