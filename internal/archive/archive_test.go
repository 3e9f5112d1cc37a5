package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/slambench/runner/internal/repository/dto"
)

func TestArchiveLocalRetention(t *testing.T) {
	exp := t.TempDir()
	retain := t.TempDir()
	req := &dto.RunRequest{
		ExpFolder:        exp,
		RunIndex:         3,
		ArtifactBaseName: "KeyFrameTrajectory",
	}
	if err := os.WriteFile(req.LogFilePath(), []byte("log\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	if err := os.WriteFile(req.ArtifactPath(), []byte("ts,x,y,z\n"), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	stored, err := New(nil, retain).Archive(context.Background(), req)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d files, want 2: %v", len(stored), stored)
	}
	for _, name := range []string{"system_output_00003.txt", "00003_KeyFrameTrajectory.csv"} {
		if _, err := os.Stat(filepath.Join(retain, "00003", name)); err != nil {
			t.Fatalf("retained copy missing: %v", err)
		}
	}
}

func TestArchiveSkipsMissingArtifact(t *testing.T) {
	exp := t.TempDir()
	retain := t.TempDir()
	req := &dto.RunRequest{
		ExpFolder:        exp,
		RunIndex:         4,
		ArtifactBaseName: "KeyFrameTrajectory",
	}
	if err := os.WriteFile(req.LogFilePath(), []byte("log\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	stored, err := New(nil, retain).Archive(context.Background(), req)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d files, want only the log: %v", len(stored), stored)
	}
}
