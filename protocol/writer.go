package protocol

import (
	"io"
	"os"
)

// DestinationWriter is the minimal surface a download block needs to land
// its bytes. *os.File satisfies it directly via WriteAt, which is naturally
// idempotent: re-downloading a block overwrites the same destination offset,
// so a retried or requeued block never corrupts the file. This intentionally
// skips the ordered-channel-plus-running-hash machinery some writers use to
// support sequential-only filesystems; random-access WriteAt is sufficient
// here.
type DestinationWriter interface {
	WriteAt(p []byte, off int64) (int, error)
}

// writeChunkAt copies all of r into w at off, used by the download block
// unit.
func writeChunkAt(w DestinationWriter, r io.Reader, off int64, size int64) error {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	_, err := w.WriteAt(buf, off)
	return err
}

// openTempDestination creates (or truncates) tmpPath with finalSize
// pre-allocated, so concurrent block writes never need to grow the file.
func openTempDestination(tmpPath string, finalSize int64) (*os.File, error) {
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if finalSize > 0 {
		if err := f.Truncate(finalSize); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// ReopenDestination exposes reopenTempDestination to the manager package for
// use on resume.
func ReopenDestination(tmpPath string, finalSize int64) (*os.File, error) {
	return reopenTempDestination(tmpPath, finalSize)
}

// reopenTempDestination re-opens tmpPath across a resume without discarding
// bytes already written for children retained in the complete state. If the
// temp file vanished (e.g. it was never created before a crash), it is
// recreated and pre-allocated exactly as openTempDestination would.
func reopenTempDestination(tmpPath string, finalSize int64) (*os.File, error) {
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != finalSize {
		if err := f.Truncate(finalSize); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
