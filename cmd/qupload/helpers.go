package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"qupload/internal/queue"
)

// fileRefFromPath stats one local file and infers its MIME type from the
// extension. Directories and unreadable paths are refused.
func fileRefFromPath(path string) (queue.FileRef, error) {
	expanded := strings.TrimSpace(path)
	if expanded == "" {
		return queue.FileRef{}, fmt.Errorf("empty file path")
	}

	info, err := os.Stat(expanded)
	if err != nil {
		return queue.FileRef{}, fmt.Errorf("stat %s: %w", expanded, err)
	}
	if info.IsDir() {
		return queue.FileRef{}, fmt.Errorf("%s is a directory", expanded)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(expanded))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return queue.FileRef{
		Name: filepath.Base(expanded),
		Path: expanded,
		Size: info.Size(),
		MIME: mimeType,
	}, nil
}

func formatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

func isTerminalWriter(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusLabel(status queue.Status) string {
	switch status {
	case queue.StatusComplete:
		return "OK"
	case queue.StatusError:
		return "FAILED"
	case queue.StatusUploading:
		return "UPLOADING"
	default:
		return "PENDING"
	}
}
