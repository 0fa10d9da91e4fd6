package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"dyfetch/internal"
)

// Characters illegal on common filesystems
const illegalFilenameChars = `\/:*?"<>|`

// maxFilenameRunes caps sanitized name length while leaving room for
// suffixes like "_cover.jpg" within typical 255-byte filename limits
const maxFilenameRunes = 80

// SanitizeFilename strips characters illegal on common filesystems,
// trims leading/trailing dots and whitespace, and caps the length while
// preserving a recognized trailing extension. An empty result falls
// back to "untitled".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Trim(b.String(), ". \t")

	if runes := []rune(cleaned); len(runes) > maxFilenameRunes {
		ext := recognizedExt(cleaned)
		keep := maxFilenameRunes - len([]rune(ext))
		if keep < 1 {
			keep = 1
		}
		cleaned = strings.Trim(string(runes[:keep]), ". ") + ext
	}

	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

// recognizedExt returns the trailing extension if it looks like a real
// media/metadata one, empty string otherwise
func recognizedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp4", ".mp3", ".m4a", ".jpg", ".jpeg", ".png", ".webp", ".gif", ".json", ".txt":
		return ext
	default:
		return ""
	}
}

// LocalStore implements the FileStore contract over the local
// filesystem, rooted at a base output directory.
type LocalStore struct {
	BasePath   string
	httpClient *HTTPClient
	quiet      bool
}

// NewLocalStore creates a store rooted at basePath, downloading through
// the given HTTP client
func NewLocalStore(basePath string, client *HTTPClient, quiet bool) *LocalStore {
	if client == nil {
		client = NewHTTPClient()
	}
	return &LocalStore{BasePath: basePath, httpClient: client, quiet: quiet}
}

// SavePathFor computes the deterministic item directory:
// base/author/mode/title_id. Every component is sanitized.
func (s *LocalStore) SavePathFor(author, mode, title, id string) string {
	dirName := SanitizeFilename(title)
	if id != "" {
		dirName = dirName + "_" + id
	}
	return filepath.Join(s.BasePath, SanitizeFilename(author), SanitizeFilename(mode), dirName)
}

// FileExistsNonEmpty reports whether path exists as a regular file with
// at least one byte. Used for skip-if-exists decisions independent of
// the ledger.
func (s *LocalStore) FileExistsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// EnsureDir creates the directory (and parents) if it doesn't exist
func (s *LocalStore) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// StreamDownload fetches url into path with streamed writes. The write
// goes through a .part temp file renamed into place on success, so a
// torn download never satisfies a later FileExistsNonEmpty check.
func (s *LocalStore) StreamDownload(ctx context.Context, url, path string, headers map[string]string) error {
	if err := s.EnsureDir(filepath.Dir(path)); err != nil {
		return internal.NewDouyinError(500, "failed to create output directory: "+err.Error(), internal.ErrDownloadFailed)
	}
	return s.httpClient.SaveToFile(ctx, url, path, headers, s.quiet)
}

// WriteSidecar writes raw metadata bytes next to the media files
func (s *LocalStore) WriteSidecar(path string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
