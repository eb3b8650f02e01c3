package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/klauspost/compress/zip"
)

var errNoPayload = errors.New("archive has no .nc member")

// extractLargestMember copies the largest .nc member of the zip at archivePath
// into destDir and returns the extracted path. Member paths are flattened to
// their base name so entries cannot escape destDir.
func extractLargestMember(archivePath, destDir string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var best *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".nc") {
			continue
		}
		if best == nil || f.UncompressedSize64 > best.UncompressedSize64 {
			best = f
		}
	}
	if best == nil {
		return "", errNoPayload
	}

	src, err := best.Open()
	if err != nil {
		return "", fmt.Errorf("open member %s: %w", best.Name, err)
	}
	defer src.Close()

	dst := filepath.Join(destDir, path.Base(best.Name))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create payload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("extract member %s: %w", best.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close payload: %w", err)
	}
	return dst, nil
}

// DecodeArchive decodes the payload of a product archive already on disk. The
// payload is extracted into a temporary directory under scratchDir that is
// removed before returning.
func DecodeArchive(archivePath, scratchDir string, decoder domain.Decoder) (domain.ObservationSet, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	dir, err := os.MkdirTemp(scratchDir, "inspect-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	payload, err := extractLargestMember(archivePath, dir)
	if err != nil {
		return nil, err
	}
	set, err := decoder.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(payload), err)
	}
	return set, nil
}
