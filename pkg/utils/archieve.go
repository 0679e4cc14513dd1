package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dbxdl/internal/models"
)

// CreateArchive zips each of paths into outputPath. Entry names are relative
// to the parent of each path, so a mirrored folder keeps its own name as the
// top-level directory. Unfinished downloads (*.part) and the archive itself
// are left out.
func CreateArchive(paths []string, outputPath string) (*models.ArchiveInfo, error) {
	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	zipWriter := zip.NewWriter(outFile)
	createdAt := time.Now()

	var originalSize int64
	for _, path := range paths {
		size, err := addToArchive(zipWriter, path, absOut)
		if err != nil {
			zipWriter.Close()
			return nil, fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
		originalSize += size
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	fileInfo, err := outFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive info: %w", err)
	}
	compressedSize := fileInfo.Size()

	compressionRatio := 0.0
	if originalSize > 0 {
		compressionRatio = float64(compressedSize) / float64(originalSize)
	}

	return &models.ArchiveInfo{
		ArchivePath:      outputPath,
		OriginalPaths:    paths,
		CompressedSize:   compressedSize,
		OriginalSize:     originalSize,
		CompressionRatio: compressionRatio,
		CreatedAt:        FormatTime(createdAt),
	}, nil
}

// addToArchive writes the tree at sourcePath and returns the number of
// content bytes added.
func addToArchive(zipWriter *zip.Writer, sourcePath, skip string) (int64, error) {
	base := filepath.Dir(filepath.Clean(sourcePath))
	var size int64

	err := filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isPartial(d.Name()) {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == skip {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if d.IsDir() {
			header.Name += "/"
			_, err := zipWriter.CreateHeader(header)
			return err
		}
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.Copy(writer, file)
		size += n
		return err
	})
	return size, err
}

func isPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".part")
}

// GenerateArchiveName returns <base>_<timestamp><extension> for a single
// path and archive_<timestamp><extension> otherwise.
func GenerateArchiveName(paths []string, extension string) string {
	stamp := time.Now().Format("20060102_150405")
	if len(paths) == 1 {
		baseName := filepath.Base(paths[0])
		if ext := filepath.Ext(baseName); ext != "" {
			baseName = strings.TrimSuffix(baseName, ext)
		}
		if baseName != "" && baseName != "." && baseName != string(filepath.Separator) {
			return fmt.Sprintf("%s_%s%s", baseName, stamp, extension)
		}
	}
	return fmt.Sprintf("archive_%s%s", stamp, extension)
}

func ValidatePaths(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("path does not exist: %s", path)
			}
			return fmt.Errorf("cannot access path %s: %w", path, err)
		}
	}
	return nil
}

// CleanupTempFile removes a half-written archive after a failed run.
func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to cleanup temporary file %s: %w", path, err)
	}
	return nil
}
