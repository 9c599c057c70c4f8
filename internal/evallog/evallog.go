// Package evallog appends per-step evaluation results to a plain text log.
//
// Each record is one line of the form
//
//	Step <step>\t <record>
//
// The log is a diagnostic trail: it is only ever appended to, never read back
// by the trainer, and assumes a single writing process.
package evallog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"

	"github.com/imishinist/biggan-cli/internal/models"
)

// FileName is the name of the log inside a run's result directory.
const FileName = "eval.txt"

// Writer appends records to the log at Path. Every write opens the target,
// appends exactly one line and closes it again, so writes issued by one
// process land in call order.
type Writer struct {
	Path string
}

// New returns a writer for the eval log in dir.
func New(dir string) *Writer {
	return &Writer{Path: file.Join(dir, FileName)}
}

// WriteEvaluation appends an evaluation record for the given step.
func (w *Writer) WriteEvaluation(ctx context.Context, step int64, evaluation models.Evaluation) error {
	return w.appendLine(ctx, fmt.Sprintf("Step %d\t %s\n", step, evaluation))
}

// WriteInceptionScore appends an inception score for the given step.
func (w *Writer) WriteInceptionScore(ctx context.Context, step int64, score float64) error {
	return w.appendLine(ctx, fmt.Sprintf("Step %d\t inception_score=%v\n", step, score))
}

func (w *Writer) appendLine(ctx context.Context, line string) error {
	if isRemote(w.Path) {
		return appendRemote(ctx, w.Path, line)
	}
	f, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.Path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", w.Path, err)
	}
	return f.Close()
}

// appendRemote emulates append on object stores, which only support whole
// object writes, by rewriting the object with the new line added.
func appendRemote(ctx context.Context, path, line string) error {
	var prev []byte
	in, err := file.Open(ctx, path)
	switch {
	case err == nil:
		prev, err = io.ReadAll(in.Reader(ctx))
		if closeErr := in.Close(ctx); err == nil {
			err = closeErr
		}
		if err != nil {
			return errors.E(err, fmt.Sprintf("evallog: read %s", path))
		}
	case errors.Is(errors.NotExist, err):
	default:
		return errors.E(err, fmt.Sprintf("evallog: open %s", path))
	}

	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("evallog: create %s", path))
	}
	buf := make([]byte, 0, len(prev)+len(line))
	buf = append(append(buf, prev...), line...)
	if _, err := out.Writer(ctx).Write(buf); err != nil {
		out.Close(ctx)
		return errors.E(err, fmt.Sprintf("evallog: write %s", path))
	}
	return out.Close(ctx)
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}
