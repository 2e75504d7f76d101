package dataset

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrReviewTooLarge indicates a tar entry larger than the configured bound.
var ErrReviewTooLarge = errors.New("dataset: review entry exceeds size limit")

const defaultMaxReviewBytes = 1 << 20

// IsArchive reports whether path names a tar or gzipped tar file.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar") || strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// StreamArchive streams labeled reviews from an aclImdb tar or tar.gz archive.
func StreamArchive(ctx context.Context, path string) (<-chan Review, <-chan error) {
	out := make(chan Review)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open archive: %w", err)
			return
		}
		defer f.Close()

		var r io.Reader = bufio.NewReader(f)
		lower := strings.ToLower(path)
		if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".tgz") {
			gz, err := gzip.NewReader(r)
			if err != nil {
				errCh <- fmt.Errorf("open gzip: %w", err)
				return
			}
			defer gz.Close()
			r = gz
		}
		tr := tar.NewReader(r)

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("read tar: %w", err)
				return
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			review, ok := parseReviewPath(hdr.Name)
			if !ok {
				continue
			}
			if hdr.Size > defaultMaxReviewBytes {
				errCh <- fmt.Errorf("%w: %s", ErrReviewTooLarge, hdr.Name)
				return
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				errCh <- fmt.Errorf("read review %s: %w", hdr.Name, err)
				return
			}
			review.Text = string(data)

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- review:
			}
		}
	}()

	return out, errCh
}

// CollectArchive drains StreamArchive into a slice.
func CollectArchive(ctx context.Context, path string) ([]Review, error) {
	reviews, errCh := StreamArchive(ctx, path)
	var out []Review
	for review := range reviews {
		out = append(out, review)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
