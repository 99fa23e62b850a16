package entries

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sw33tLie/gvmerge/internal/utils"
)

// MediaDir is the directory, relative to a conversation, holding its media.
const MediaDir = "media"

func (e *Entry) saveMedia(outputDir string) error {
	dir := filepath.Join(outputDir, e.Key(), MediaDir)
	outputPath := filepath.Join(dir, e.sourceName())

	utils.Log.Debugf("Saving media entry %q to %q", e.Name, outputPath)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := copyFile(e.SourcePath, outputPath); err != nil {
		return fmt.Errorf("failed to copy %q: %w", e.Name, err)
	}

	e.SavedPath = outputPath
	return nil
}

// sourceName is the file name of the entry as exported.
func (e *Entry) sourceName() string {
	if e.SourcePath == "" {
		return e.Name
	}
	return strings.TrimSpace(filepath.Base(e.SourcePath))
}

// RelativePath is the path of a saved media entry as referenced from the
// conversation document.
func (e *Entry) RelativePath() string {
	if e.SavedPath == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Join(MediaDir, filepath.Base(e.SavedPath)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
