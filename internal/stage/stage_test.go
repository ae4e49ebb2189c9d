package stage_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/scratch/internal/fileutil"
	"github.com/bamsammich/scratch/internal/session"
	"github.com/bamsammich/scratch/internal/stage"
)

type fixture struct {
	sess   *session.Session
	out    *bytes.Buffer
	srcDir string
	tmpDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	out := &bytes.Buffer{}
	f := &fixture{
		sess:   session.New(out),
		out:    out,
		srcDir: t.TempDir(),
		tmpDir: t.TempDir(),
	}
	f.sess.Tmp.SetDirectory(f.tmpDir + "/")
	t.Cleanup(func() { f.sess.Close() })
	return f
}

func (f *fixture) plain(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func (f *fixture) gzipped(t *testing.T, name string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return f.plain(t, name, buf.Bytes())
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestStage_DecodesIntoScratch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	plainData := []byte(">chr1\nACGTACGT\n")
	gzData := bytes.Repeat([]byte("TTGACA"), 10000)
	inputs := []string{
		f.plain(t, "ref.fa", plainData),
		f.gzipped(t, "sample.vcf.gz", gzData),
	}

	s := stage.New(stage.Config{Inputs: inputs, Workers: 4, Truncate: stage.NoTruncate, Session: f.sess})
	files, err := s.Stage(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, fileutil.Plain, files[0].Format)
	assert.Equal(t, fileutil.Gzip, files[1].Format)
	assert.Contains(t, files[1].Path, filepath.Join(f.tmpDir, "sample.vcf_"))

	for i, want := range [][]byte{plainData, gzData} {
		got, err := os.ReadFile(files[i].Path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, int64(len(want)), files[i].Size)
		assert.Equal(t, digest(want), files[i].Digest)
	}

	assert.Equal(t, uint64(len(plainData)+len(gzData)), f.sess.Writes.Total())
	assert.Len(t, f.sess.Tmp.Live(), 2)

	snap := s.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.FilesStaged)
	assert.Equal(t, int64(len(plainData)+len(gzData)), snap.BytesStaged)

	paths := []string{files[0].Path, files[1].Path}
	s.Release(files)
	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	assert.Empty(t, files[0].Path)
	assert.Empty(t, f.sess.Tmp.Live())
}

func TestStage_PartialFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	good := f.plain(t, "good", []byte("ok"))
	missing := filepath.Join(f.srcDir, "missing")

	s := stage.New(stage.Config{Inputs: []string{missing, good}, Workers: 2, Truncate: stage.NoTruncate, Session: f.sess})
	files, err := s.Stage(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)

	require.Error(t, files[0].Err)
	assert.Empty(t, files[0].Path)
	require.NoError(t, files[1].Err)
	assert.FileExists(t, files[1].Path)

	snap := s.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.FilesFailed)
	assert.Equal(t, int64(1), snap.FilesStaged)
	assert.Equal(t, []string{files[1].Path}, f.sess.Tmp.Live())
}

func TestStage_Truncate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := f.plain(t, "big", bytes.Repeat([]byte("z"), 1000))
	s := stage.New(stage.Config{Inputs: []string{in}, Truncate: 10, Session: f.sess})
	files, err := s.Stage(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size())
	assert.Equal(t, int64(10), files[0].Size)
	assert.Equal(t, digest(bytes.Repeat([]byte("z"), 1000)), files[0].Digest)
	assert.Equal(t, int64(1), s.Stats().Snapshot().FilesTruncated)
}

func TestStage_Cancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	inputs := []string{f.plain(t, "a", []byte("a")), f.plain(t, "b", []byte("b"))}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := stage.New(stage.Config{Inputs: inputs, Workers: 2, Truncate: stage.NoTruncate, Session: f.sess})
	files, err := s.Stage(ctx)
	require.ErrorIs(t, err, context.Canceled)
	for _, file := range files {
		assert.Error(t, file.Err)
		assert.Empty(t, file.Path)
	}
	assert.Empty(t, f.sess.Tmp.Live())
}

func TestStage_BandwidthLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	data := bytes.Repeat([]byte("q"), 64*1024)
	in := f.plain(t, "limited", data)
	s := stage.New(stage.Config{Inputs: []string{in}, BWLimit: 1 << 20, Truncate: stage.NoTruncate, Session: f.sess})
	files, err := s.Stage(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStage_LeftoversReclaimedOnClose(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sess := session.New(&out)
	sess.Tmp.SetDirectory(t.TempDir())
	src := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.WriteFile(src, []byte("12345"), 0o644))

	files, err := stage.New(stage.Config{Inputs: []string{src}, Truncate: stage.NoTruncate, Session: sess}).
		Stage(context.Background())
	require.NoError(t, err)
	require.FileExists(t, files[0].Path)

	sess.Close()

	assert.NoFileExists(t, files[0].Path)
	assert.Equal(t, "[Disk Write (bytes): 5]\n", out.String())
}

func TestHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"/data/ALL.chr1.vcf.gz", "ALL.chr1.vcf"},
		{"ref.fa.bgz", "ref.fa"},
		{"reads.zst", "reads"},
		{"plain.txt", "plain.txt"},
		{".gz", "scratch"},
		{"", "scratch"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stage.Hint(tt.input), tt.input)
	}
}
