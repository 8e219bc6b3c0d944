package blobstore

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrAborted is passed to the upload of an aborted pipe writer.
var ErrAborted = errors.New("blobstore: upload aborted")

// NewPipeWriter returns a WritableBlob that streams everything written to it
// into upload, which runs in the background. Close waits for upload to
// return; Abort makes the body fail with ErrAborted.
//
// Remote stores use it to turn a request taking an io.Reader body into a
// writer.
func NewPipeWriter(ctx context.Context, upload func(ctx context.Context, body io.Reader) error) WritableBlob {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := upload(gctx, pr)
		_ = pr.CloseWithError(err)
		return err
	})
	return &pipeWriter{pw: pw, g: g}
}

type pipeWriter struct {
	pw *io.PipeWriter
	g  *errgroup.Group

	mu       sync.Mutex
	finished bool
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *pipeWriter) finish() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return false
	}
	w.finished = true
	return true
}

func (w *pipeWriter) Close() error {
	if !w.finish() {
		return io.ErrClosedPipe
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return w.g.Wait()
}

func (w *pipeWriter) Abort() error {
	if !w.finish() {
		return nil
	}
	_ = w.pw.CloseWithError(ErrAborted)
	_ = w.g.Wait()
	return nil
}

// Sync is a no-op; data is committed on Close.
func (w *pipeWriter) Sync() error {
	return nil
}
