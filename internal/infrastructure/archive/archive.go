package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// FileArchive writes digest documents as markdown files into a flat
// directory. Filenames carry a generation timestamp so repeated weekly
// runs never overwrite each other.
type FileArchive struct {
	dir string
}

var _ ports.DigestArchive = (*FileArchive)(nil)

// NewFileArchive builds an archive rooted at dir.
func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{dir: dir}
}

// Save renders the digest to markdown and writes it to the archive
// directory, returning the file path.
func (a *FileArchive) Save(_ context.Context, doc domain.WeeklyDigestDocument) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure digest directory: %w", err)
	}

	name := fmt.Sprintf("weekly_digest_%s.md", doc.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, []byte(render(doc)), 0o644); err != nil {
		return "", fmt.Errorf("write digest file: %w", err)
	}

	return path, nil
}

// Recent lists up to limit archived digest paths, newest first.
func (a *FileArchive) Recent(limit int) ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read digest directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "weekly_digest_") {
			continue
		}
		paths = append(paths, filepath.Join(a.dir, entry.Name()))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

func render(doc domain.WeeklyDigestDocument) string {
	var b strings.Builder

	rangeLabel := fmt.Sprintf("%s - %s",
		doc.RangeStart.Format("January 02"), doc.RangeEnd.Format("January 02, 2006"))
	days := int(doc.RangeEnd.Sub(doc.RangeStart).Hours() / 24)

	b.WriteString(fmt.Sprintf("# Weekly Newsletter Digest: %s\n\n", rangeLabel))
	b.WriteString(fmt.Sprintf("**Date range:** %s\n", rangeLabel))
	b.WriteString(fmt.Sprintf("**Days covered:** %d\n", days))
	b.WriteString(fmt.Sprintf("**Newsletters:** %d\n", doc.TotalNewsletters))
	b.WriteString(fmt.Sprintf("**Generated at:** %s\n", doc.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("**Model:** %s\n", doc.Model))
	b.WriteString(fmt.Sprintf("**Digest id:** %s\n\n", doc.ID))
	b.WriteString("---\n\n")
	b.WriteString(doc.UnifiedNarrative)
	b.WriteString("\n")

	return b.String()
}
