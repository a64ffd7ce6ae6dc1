package backup

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cafe-pos/internal/logging"
)

// Uploads reads and writes the files referenced by business records. Files
// live under one of several candidate roots; the first existing root wins.
type Uploads struct {
	candidates  []string
	defaultRoot string
	logger      *logging.Logger
}

// DefaultCandidateRoots returns <cwd>/uploads and <cwd>/../uploads
func DefaultCandidateRoots() []string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return []string{
		filepath.Join(cwd, "uploads"),
		filepath.Join(cwd, "..", "uploads"),
	}
}

// NewUploads creates an Uploads over the given candidate roots. An empty
// list falls back to DefaultCandidateRoots. defaultRoot is used for writes
// when no candidate exists yet; empty means the first candidate.
func NewUploads(candidates []string, defaultRoot string, logger *logging.Logger) *Uploads {
	if len(candidates) == 0 {
		candidates = DefaultCandidateRoots()
	}
	if defaultRoot == "" {
		defaultRoot = candidates[0]
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	cleaned := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if abs, err := filepath.Abs(c); err == nil {
			c = abs
		}
		cleaned = append(cleaned, filepath.Clean(c))
	}
	if abs, err := filepath.Abs(defaultRoot); err == nil {
		defaultRoot = abs
	}

	return &Uploads{
		candidates:  cleaned,
		defaultRoot: filepath.Clean(defaultRoot),
		logger:      logger,
	}
}

// Candidates returns the configured candidate roots in search order
func (u *Uploads) Candidates() []string {
	out := make([]string, len(u.candidates))
	copy(out, u.candidates)
	return out
}

// ResolveRoots returns the candidate roots that exist as directories
func (u *Uploads) ResolveRoots() []string {
	var roots []string
	for _, c := range u.candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

// PrimaryRoot is the directory restores write into
func (u *Uploads) PrimaryRoot() string {
	if roots := u.ResolveRoots(); len(roots) > 0 {
		return roots[0]
	}
	return u.defaultRoot
}

// NormalizeUploadPath converts backslashes and reports whether p is an
// upload reference
func NormalizeUploadPath(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, UploadsPrefix) {
		return "", false
	}
	return p, true
}

// relativeUploadPath strips the /uploads/ or uploads/ prefix
func relativeUploadPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	switch {
	case strings.HasPrefix(p, UploadsPrefix):
		return strings.TrimPrefix(p, UploadsPrefix)
	case strings.HasPrefix(p, "uploads/"):
		return strings.TrimPrefix(p, "uploads/")
	default:
		return strings.TrimPrefix(p, "/")
	}
}

// resolveWithin joins rel onto root and fails if the result leaves root
func resolveWithin(root, rel string) (string, bool) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, target)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", false
	}
	return target, true
}

// Collect reads every referenced file and returns it base64 encoded.
// References that cannot be found or read are skipped and returned in
// skipped; they never fail the export.
func (u *Uploads) Collect(ctx context.Context, refs []string) ([]File, []string) {
	roots := u.ResolveRoots()
	files := make([]File, 0, len(refs))
	var skipped []string

	for _, ref := range refs {
		if ctx.Err() != nil {
			skipped = append(skipped, ref)
			continue
		}

		content, found := u.read(roots, relativeUploadPath(ref))
		if !found {
			u.logger.WithField("path", ref).Warn("Upload referenced by backup data not found, skipping")
			skipped = append(skipped, ref)
			continue
		}

		files = append(files, File{
			Path:          ref,
			ContentBase64: base64.StdEncoding.EncodeToString(content),
		})
	}

	return files, skipped
}

func (u *Uploads) read(roots []string, rel string) ([]byte, bool) {
	for _, root := range roots {
		target, ok := resolveWithin(root, rel)
		if !ok {
			u.logger.WithFields(map[string]interface{}{"root": root, "path": rel}).
				Warn("Upload reference escapes the uploads root, skipping")
			return nil, false
		}

		content, err := os.ReadFile(target)
		if err == nil {
			return content, true
		}
		if !os.IsNotExist(err) {
			u.logger.WithFields(map[string]interface{}{"path": target, "error": err.Error()}).
				Debug("Failed to read upload candidate")
		}
	}
	return nil, false
}

type plannedWrite struct {
	path    string
	content []byte
}

// Restore writes files under the primary root. Every destination and every
// payload is checked before anything is written, so one bad entry leaves
// the filesystem untouched. Paths outside /uploads/ are skipped.
func (u *Uploads) Restore(ctx context.Context, files []File) (int, error) {
	root := u.PrimaryRoot()

	plan := make([]plannedWrite, 0, len(files))
	for _, f := range files {
		p, ok := NormalizeUploadPath(f.Path)
		if !ok {
			u.logger.WithField("path", f.Path).Warn("Skipping backup file outside /uploads/")
			continue
		}

		target, ok := resolveWithin(root, relativeUploadPath(p))
		if !ok {
			return 0, NewSecurityError("invalid file path in backup", nil).
				WithContext("path", f.Path)
		}

		content, err := decodeBase64(f.ContentBase64)
		if err != nil {
			return 0, NewValidationError(fmt.Sprintf("invalid file content for %s", f.Path), err).
				WithContext("path", f.Path)
		}

		plan = append(plan, plannedWrite{path: target, content: content})
	}

	written := 0
	for _, w := range plan {
		if err := ctx.Err(); err != nil {
			return written, NewFilesystemError("file restore interrupted", err)
		}
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return written, NewFilesystemError("failed to create upload directory", err).
				WithContext("path", w.path)
		}
		if err := os.WriteFile(w.path, w.content, 0o644); err != nil {
			return written, NewFilesystemError("failed to write upload", err).
				WithContext("path", w.path)
		}
		written++
	}

	u.logger.WithFields(map[string]interface{}{"root": root, "files": written}).Debug("Restored uploads")
	return written, nil
}

func decodeBase64(s string) ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return content, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
