package ui

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/scratch/internal/stage"
	"github.com/bamsammich/scratch/internal/stats"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
)

// WriteManifest prints one row per staged input: input, scratch path,
// format, size and BLAKE3 digest. Failed inputs show their error instead.
// With human set, sizes are rendered as KiB/MiB.
func WriteManifest(w io.Writer, files []stage.File, human bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tSCRATCH\tFORMAT\tSIZE\tBLAKE3")
	for _, f := range files {
		if f.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\n", f.Input, f.Err)
			continue
		}
		size := strconv.FormatInt(f.Size, 10)
		if human {
			size = stats.FormatBytes(f.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Input, f.Path, f.Format, size, f.Digest)
	}
	return tw.Flush()
}

// Summary renders a one-line recap of a staging run. styled adds color
// for terminals.
func Summary(s stats.Snapshot, styled bool) string {
	line := fmt.Sprintf("staged %d file(s), %s in %s (%s)",
		s.FilesStaged, stats.FormatBytes(s.BytesStaged), FormatDuration(s.Elapsed),
		FormatRate(float64(s.BytesStaged)/max(s.Elapsed.Seconds(), 0.001)))
	if s.FilesTruncated > 0 {
		line += fmt.Sprintf(", %d truncated", s.FilesTruncated)
	}
	if s.FilesFailed > 0 {
		failed := fmt.Sprintf("%d failed", s.FilesFailed)
		if styled {
			failed = styleFailed.Render(failed)
		}
		return line + ", " + failed
	}
	if styled {
		return styleOK.Render("✓") + " " + line
	}
	return line
}

// FormatRate formats a bytes-per-second rate as a human-readable string.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	units := []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s"}
	val := bytesPerSec
	for _, u := range units {
		if val < 1024 {
			if val < 10 {
				return fmt.Sprintf("%.2f %s", val, u)
			}
			if val < 100 {
				return fmt.Sprintf("%.1f %s", val, u)
			}
			return fmt.Sprintf("%.0f %s", val, u)
		}
		val /= 1024
	}
	return fmt.Sprintf("%.1f PB/s", val)
}

// FormatDuration formats elapsed time concisely. Sub-second durations are
// shown in milliseconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
