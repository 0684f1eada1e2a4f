// Package reader provides bounded random-access reads over one database
// file, with retry logic for handles invalidated behind the engine's back
// (external truncation, NFS stale handles).
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/metrics"
)

var (
	// ErrOutOfRange is returned for reads whose range exceeds the file's
	// last known size. Truncated data is never returned.
	ErrOutOfRange = errors.New("read beyond end of file")

	// ErrFileGone is returned when the file's path no longer resolves.
	ErrFileGone = errors.New("database file no longer exists")
)

// Config controls re-open retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns sensible defaults for stale-handle retry behavior.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Reader owns one open file handle. It performs no caching; every read goes
// to the OS. A Reader is exclusively owned by one session.
type Reader struct {
	path string
	cfg  Config

	mu   sync.Mutex
	file *os.File
	size int64
}

// Open opens the file and records its current size.
func Open(path string, cfg Config) (*Reader, error) {
	r := &Reader{path: path, cfg: cfg}
	if err := r.reopenLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Size returns the last known file size in bytes.
func (r *Reader) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// ReadAt reads exactly length bytes starting at offset. Ranges beyond the
// last known size fail with ErrOutOfRange; a handle gone stale is reopened
// transparently with bounded backoff before the read is surfaced as failed.
func (r *Reader) ReadAt(offset, length int64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset < 0 || length < 0 || offset+length > r.size {
		metrics.ReaderReadsTotal.WithLabelValues("out_of_range").Inc()
		return nil, fmt.Errorf("%w: [%d, %d) of %d bytes", ErrOutOfRange, offset, offset+length, r.size)
	}

	buf := make([]byte, length)
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.file == nil {
			if err := r.reopenLocked(); err != nil {
				return nil, err
			}
		}

		_, err := r.file.ReadAt(buf, offset)
		if err == nil {
			if attempt > 0 {
				logging.Info("read of %s succeeded on retry %d", r.path, attempt)
			}
			metrics.ReaderReadsTotal.WithLabelValues("ok").Inc()
			return buf, nil
		}
		lastErr = err

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// The file shrank since the size was last recorded. Refresh the
			// size so later reads are bounds-checked correctly.
			if refreshErr := r.refreshLocked(); refreshErr != nil {
				return nil, refreshErr
			}
			metrics.ReaderReadsTotal.WithLabelValues("out_of_range").Inc()
			return nil, fmt.Errorf("%w: file truncated to %d bytes", ErrOutOfRange, r.size)
		}

		if !isStaleHandle(err) {
			metrics.ReaderReadsTotal.WithLabelValues("io_error").Inc()
			return nil, fmt.Errorf("read %s: %w", r.path, err)
		}

		// Stale handle: force a re-open on the next attempt.
		r.closeLocked()
		if attempt < r.cfg.MaxRetries {
			metrics.ReaderRetriesTotal.Inc()
			logging.Debug("stale handle for %s, retrying in %v (attempt %d/%d)",
				r.path, backoff, attempt+1, r.cfg.MaxRetries)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}
	}

	logging.Warn("read of %s failed after %d retries: %v", r.path, r.cfg.MaxRetries, lastErr)
	metrics.ReaderReadsTotal.WithLabelValues("io_error").Inc()
	return nil, fmt.Errorf("read %s: %w", r.path, lastErr)
}

// Refresh re-stats the file so the next reads see its current size. It is
// called at the start of every reload.
func (r *Reader) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked()
}

// Close releases the file handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reader) refreshLocked() error {
	// Re-open rather than fstat the held handle: after a rename-over-replace
	// the held handle points at the old inode.
	r.closeLocked()
	return r.reopenLocked()
}

func (r *Reader) reopenLocked() error {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.ReaderReadsTotal.WithLabelValues("file_gone").Inc()
			return fmt.Errorf("%w: %s", ErrFileGone, r.path)
		}
		return fmt.Errorf("open %s: %w", r.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat %s: %w", r.path, err)
	}

	if r.file != nil {
		metrics.ReaderReopensTotal.Inc()
	}
	r.closeLocked()
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *Reader) closeLocked() {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			logging.Debug("close %s: %v", r.path, err)
		}
		r.file = nil
	}
}

// isStaleHandle checks for errors that invalidate a held file descriptor:
// NFS stale handles (ESTALE) and descriptors closed out from under us.
func isStaleHandle(err error) bool {
	if errors.Is(err, os.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE || errno == syscall.EBADF
	}
	return false
}
