// Package localfs is a deterministic, filesystem-backed transport.Client used
// by the blobxfer CLI harness in cmd/ and by tests in place of a real HTTP
// backend. Block puts land as files named by block id in a sibling
// "<destination>.blocks" staging directory, and commit concatenates them in
// order into the destination file, then removes the staging directory.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/blobxfer/blobxfer/transport"
)

// Client roots every source/destination path under a base directory.
type Client struct {
	Base string
}

func New(base string) *Client { return &Client{Base: base} }

func (c *Client) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Base, p)
}

func (c *Client) ProbeSize(ctx context.Context, source string) (int64, error) {
	info, err := os.Stat(c.resolve(source))
	if err != nil {
		return 0, &transport.StatusError{StatusCode: 404, Err: err}
	}
	return info.Size(), nil
}

func (c *Client) RangeGet(ctx context.Context, source string, start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(c.resolve(source))
	if err != nil {
		return nil, &transport.StatusError{StatusCode: 404, Err: err}
	}
	return &sectionReadCloser{f: f, r: io.NewSectionReader(f, start, end-start)}, nil
}

type sectionReadCloser struct {
	f *os.File
	r *io.SectionReader
}

func (s *sectionReadCloser) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *sectionReadCloser) Close() error                { return s.f.Close() }

func (c *Client) stagingDir(destination string) string {
	return c.resolve(destination) + ".blocks"
}

func (c *Client) BlockPut(ctx context.Context, destination string, blockID string, data io.Reader, size int64) error {
	dir := c.stagingDir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &transport.StatusError{StatusCode: 500, Err: err}
	}
	f, err := os.Create(filepath.Join(dir, blockID))
	if err != nil {
		return &transport.StatusError{StatusCode: 500, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, data); err != nil {
		return &transport.StatusError{StatusCode: 500, Err: err}
	}
	return nil
}

func (c *Client) CommitBlockList(ctx context.Context, destination string, blockIDsInOrder []string, properties map[string]string) error {
	dst := c.resolve(destination)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &transport.StatusError{StatusCode: 500, Err: err}
	}
	out, err := os.Create(dst)
	if err != nil {
		return &transport.StatusError{StatusCode: 500, Err: err}
	}
	defer out.Close()

	dir := c.stagingDir(destination)
	for _, id := range blockIDsInOrder {
		in, err := os.Open(filepath.Join(dir, id))
		if err != nil {
			return &transport.StatusError{StatusCode: 500, Err: err}
		}
		_, copyErr := io.Copy(out, in)
		in.Close()
		if copyErr != nil {
			return &transport.StatusError{StatusCode: 500, Err: copyErr}
		}
	}
	os.RemoveAll(dir)
	return nil
}
