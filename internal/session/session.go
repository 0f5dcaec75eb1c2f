// Package session resolves where the raw data of an experimental session
// lives on disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"

	"sessionflow/internal/schema"
	"sessionflow/pkg/domain"
)

const directoryTable = "session.SessionDirectory"

var (
	// ErrNotFound is returned when no root data directory holds a session path.
	ErrNotFound = errors.New("session data not found")
	// ErrOutsideRoot is returned for session paths that climb out of the root.
	ErrOutsideRoot = errors.New("session path escapes root data directory")
)

// Fetcher reads single attributes. *core.Pipeline satisfies it.
type Fetcher interface {
	Table(name string) (*schema.Table, error)
	Fetch1(ctx context.Context, t *schema.Table, key domain.Row, column string) (string, error)
}

// Directory returns the session directory recorded for key, relative to a
// root data directory.
func Directory(ctx context.Context, f Fetcher, key domain.SessionKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	t, err := f.Table(directoryTable)
	if err != nil {
		return "", err
	}
	dir, err := f.Fetch1(ctx, t, key.Row(), "session_dir")
	if err != nil {
		return "", fmt.Errorf("session directory for %s at %s: %w", key.Subject, key.SessionDatetime, err)
	}
	return dir, nil
}

// FindFullPath returns the first root/rel that exists. Roots may start with
// "~". Windows separators in rel are accepted and rel is always treated as
// relative to the root; a rel that cleans to a path above the root fails
// with ErrOutsideRoot.
func FindFullPath(roots []string, rel string) (string, error) {
	rel, err := normalize(rel)
	if err != nil {
		return "", err
	}
	tried := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		expanded, err := homedir.Expand(root)
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", root, err)
		}
		full := filepath.Join(expanded, rel)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", full, err)
		}
		tried = append(tried, expanded)
	}
	if len(tried) == 0 {
		return "", fmt.Errorf("%w: no root data directory configured for %s", ErrNotFound, rel)
	}
	return "", fmt.Errorf("%w: %s under any of [%s]", ErrNotFound, rel, strings.Join(tried, ", "))
}

func normalize(rel string) (string, error) {
	slashed := strings.ReplaceAll(strings.TrimSpace(rel), `\`, "/")
	cleaned := path.Clean(strings.TrimLeft(slashed, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return filepath.FromSlash(cleaned), nil
}
