package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ReviewFile locates one labeled review on disk.
type ReviewFile struct {
	Path string
	Review
}

// DiscoverReviews returns the labeled review files beneath root, sorted by path.
func DiscoverReviews(root string) ([]ReviewFile, error) {
	entries := make([]ReviewFile, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		// root itself may be the split directory, keep its name in view.
		rel = filepath.Join(filepath.Base(root), rel)
		if review, ok := parseReviewPath(rel); ok {
			entries = append(entries, ReviewFile{Path: path, Review: review})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover reviews: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ReadReviews loads the text of every discovered file.
func ReadReviews(files []ReviewFile) ([]Review, error) {
	out := make([]Review, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read review %s: %w", f.Path, err)
		}
		review := f.Review
		review.Text = string(data)
		out = append(out, review)
	}
	return out, nil
}
