package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	name string
	body string
}

func buildArchive(t *testing.T, path string, gzipped bool, entries []archiveEntry) {
	t.Helper()
	buf := &bytes.Buffer{}
	var tw *tar.Writer
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(buf)
		tw = tar.NewWriter(gz)
	} else {
		tw = tar.NewWriter(buf)
	}
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "aclImdb/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Size: int64(len(e.body)), Mode: 0o644, Typeflag: tar.TypeReg}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	if gz != nil {
		require.NoError(t, gz.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestStreamArchiveGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aclImdb_v1.tar.gz")
	buildArchive(t, path, true, []archiveEntry{
		{"aclImdb/train/pos/0_9.txt", "brilliant"},
		{"aclImdb/train/neg/0_3.txt", "boring"},
		{"aclImdb/train/unsup/0_0.txt", "ignored"},
		{"aclImdb/imdb.vocab", "the\nand\n"},
		{"aclImdb/test/neg/4_1.txt", "terrible"},
	})

	reviews, err := CollectArchive(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, "brilliant", reviews[0].Text)
	assert.Equal(t, 1, reviews[0].Label)
	assert.Equal(t, SplitTest, reviews[2].Split)
	assert.Equal(t, 0, reviews[2].Label)
}

func TestStreamArchivePlainTar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.tar")
	buildArchive(t, path, false, []archiveEntry{
		{"aclImdb/test/pos/1_8.txt", "fun"},
	})
	reviews, err := CollectArchive(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "test/pos/1_8", reviews[0].Key)
}

func TestStreamArchiveCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.tar")
	buildArchive(t, path, false, []archiveEntry{
		{"aclImdb/test/pos/1_8.txt", "fun"},
		{"aclImdb/test/pos/2_8.txt", "more fun"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CollectArchive(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamArchiveMissingFile(t *testing.T) {
	_, err := CollectArchive(context.Background(), filepath.Join(t.TempDir(), "nope.tar.gz"))
	require.ErrorContains(t, err, "open archive")
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("aclImdb_v1.tar.gz"))
	assert.True(t, IsArchive("x.TGZ"))
	assert.True(t, IsArchive("x.tar"))
	assert.False(t, IsArchive("x.zip"))
}
