// Package stage decodes input files into registered scratch files so that
// tools which only read plain files can consume compressed inputs.
package stage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"

	"github.com/bamsammich/scratch/internal/fileutil"
	"github.com/bamsammich/scratch/internal/session"
	"github.com/bamsammich/scratch/internal/stats"
)

// NoTruncate disables post-staging truncation.
const NoTruncate int64 = -1

// Config controls a staging run.
type Config struct {
	Inputs   []string
	Workers  int
	BWLimit  int64 // bytes/sec, 0 = unlimited
	Truncate int64 // NoTruncate or target size of every staged file
	Session  *session.Session
	Stats    *stats.Collector
}

// File describes one staged input.
type File struct {
	Input  string
	Path   string // scratch path; empty once released or on failure
	Format fileutil.Format
	Size   int64  // size on disk after any truncation
	Digest string // BLAKE3 of the decoded input, hex
	Err    error
}

// Stager stages inputs into scratch files owned by a session.
type Stager struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Stager. A nil Stats gets a fresh collector.
func New(cfg Config) *Stager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	s := &Stager{cfg: cfg}
	if cfg.BWLimit > 0 {
		s.limiter = NewBWLimiter(cfg.BWLimit)
	}
	return s
}

// Stats returns the collector the stager reports into.
func (s *Stager) Stats() *stats.Collector { return s.cfg.Stats }

// Stage decodes every input into its own scratch file using up to
// cfg.Workers goroutines. Files are returned in input order. Successfully
// staged files stay registered until Release (or session shutdown). The
// returned error joins every per-file failure.
func (s *Stager) Stage(ctx context.Context) ([]File, error) {
	files := make([]File, len(s.cfg.Inputs))
	for i, in := range s.cfg.Inputs {
		files[i].Input = in
	}

	tasks := make(chan int)
	var wg sync.WaitGroup
	for range min(s.cfg.Workers, len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				s.stageOne(ctx, &files[i])
			}
		}()
	}

	for i := range files {
		if ctx.Err() != nil {
			files[i].Err = ctx.Err()
			continue
		}
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	var errs []error
	for _, f := range files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Input, f.Err))
		}
	}
	return files, errors.Join(errs...)
}

// Release deletes every staged file and forgets it.
func (s *Stager) Release(files []File) {
	for i := range files {
		s.cfg.Session.Tmp.Release(&files[i].Path)
	}
}

func (s *Stager) stageOne(ctx context.Context, f *File) {
	if err := s.copyInput(ctx, f); err != nil {
		s.cfg.Session.Tmp.Release(&f.Path)
		f.Err = err
		s.cfg.Stats.AddFilesFailed(1)
		slog.Warn("stage failed", "input", f.Input, "error", err)
		return
	}
	s.cfg.Stats.AddFilesStaged(1)
	s.cfg.Stats.AddBytesStaged(f.Size)

	if s.cfg.Truncate >= 0 {
		// Truncation failures are logged by fileutil and do not fail the file.
		if err := fileutil.Truncate(f.Path, s.cfg.Truncate); err == nil {
			f.Size = s.cfg.Truncate
			s.cfg.Stats.AddFilesTruncated(1)
		}
	}
	slog.Debug("staged", "input", f.Input, "path", f.Path, "format", f.Format, "size", f.Size)
}

func (s *Stager) copyInput(ctx context.Context, f *File) error {
	src, format, err := fileutil.OpenInput(f.Input)
	if err != nil {
		return err
	}
	defer src.Close()
	f.Format = format

	f.Path = s.cfg.Session.Tmp.Name(Hint(f.Input))
	dst, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create scratch %s: %w", f.Path, err)
	}

	if format == fileutil.Plain {
		if info, err := os.Stat(f.Input); err == nil {
			fileutil.Preallocate(dst, info.Size())
		}
	}

	h := blake3.New()
	var w io.Writer = io.MultiWriter(stats.CountingWriter(dst, s.cfg.Session.Writes), h)
	if s.limiter != nil {
		w = &rateLimitedWriter{ctx: ctx, w: w, limiter: s.limiter}
	}

	buf := make([]byte, 256*1024)
	n, err := io.CopyBuffer(w, &ctxReader{ctx: ctx, r: src}, buf)
	if err != nil {
		dst.Close()
		return fmt.Errorf("copy %s: %w", f.Input, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close scratch %s: %w", f.Path, err)
	}

	f.Size = n
	f.Digest = hex.EncodeToString(h.Sum(nil))
	return nil
}

var compressedExts = []string{".gz", ".bgz", ".zst", ".lz4"}

// Hint derives a scratch name hint from an input path: its base name
// without a compression extension.
func Hint(input string) string {
	base := filepath.Base(input)
	for _, ext := range compressedExts {
		if trimmed, ok := strings.CutSuffix(base, ext); ok {
			base = trimmed
			break
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "scratch"
	}
	return base
}
