// Package report appends human-readable run summaries to the report file.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"siv-go/internal/siv"
)

// TextReporter writes plain-text reports, one logical entry per line.
type TextReporter struct {
	fs afero.Fs
}

var _ siv.Reporter = (*TextReporter)(nil)

// NewTextReporter creates a reporter on fsys.
func NewTextReporter(fsys afero.Fs) *TextReporter {
	return &TextReporter{fs: fsys}
}

// Reset removes the report at path. A missing report is not an error.
func (r *TextReporter) Reset(path string) error {
	if err := r.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &siv.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a report has been written at path.
func (r *TextReporter) Exists(path string) (bool, error) {
	_, err := r.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &siv.IOError{Op: "stat", Path: path, Err: err}
}

// Append writes the summary of run to the end of the report at path.
func (r *TextReporter) Append(path string, run *siv.Run) error {
	f, err := r.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &siv.IOError{Op: "open", Path: path, Err: err}
	}

	w := bufio.NewWriter(f)
	for _, line := range Lines(run) {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return &siv.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &siv.IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// Lines renders a run summary. Verify runs end with the warning count and
// the full warning log.
func Lines(run *siv.Run) []string {
	title := strings.ToUpper(modeTitle(run.Mode))
	lines := []string{
		"",
		"\t\t" + title,
		fmt.Sprintf("Run %s started %s", run.ID, run.StartedAt.UTC().Format("2006-01-02T15:04:05Z")),
		fmt.Sprintf("Monitored directory %s", run.Directory),
		fmt.Sprintf("Verification file %s", run.SnapshotPath),
		fmt.Sprintf("Hash algorithm %s", run.Algorithm),
		fmt.Sprintf("Number of iterated files are : %d", run.Files),
		fmt.Sprintf("Number of iterated Directories are : %d", run.Directories),
		fmt.Sprintf("Time to finish %s %.3f seconds", title, run.Elapsed().Seconds()),
	}
	if run.Mode == siv.ModeVerify && run.Result != nil {
		lines = append(lines, fmt.Sprintf("Number of warnings %d", run.Result.Warnings()))
		lines = append(lines, run.Result.Log()...)
	}
	return lines
}

func modeTitle(m siv.Mode) string {
	if m == siv.ModeVerify {
		return "verification"
	}
	return "initialization"
}
