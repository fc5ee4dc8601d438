// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package cmd is a thin cobra harness over the Manager facade: it exists to
// exercise add/pause/resume/cancel/remove/list end-to-end, not as a product
// surface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/manager"
	"github.com/blobxfer/blobxfer/reachability"
	"github.com/blobxfer/blobxfer/transport/localfs"
)

var (
	rootDir     string
	storePath   string
	blockSizeMB int64
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:   "blobxfer",
	Short: "blobxfer drives the Blob Transfer Manager from the command line",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	home, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", filepath.Join(home, ".blobxfer"), "local directory standing in for remote storage")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "persistent store path (default: <root>/blobxfer.db)")
	rootCmd.PersistentFlags().Int64Var(&blockSizeMB, "block-size-mb", 4, "block size in MiB")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "max concurrent chunk workers (0 = default)")
}

func openManager() (*manager.Manager, func(), error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, nil, err
	}
	path := storePath
	if path == "" {
		path = filepath.Join(rootDir, "blobxfer.db")
	}
	logger := common.NewAppLogger(common.LogInfo)
	delegate := newLocalDelegate(localfs.New(rootDir), logger)
	reach := reachability.New(reachability.ReachableWifi)

	cfg := manager.Config{
		MaxConcurrentChunks: concurrency,
		BlockSize:           blockSizeMB * 1024 * 1024,
		StorePath:           path,
		TempDir:             rootDir,
	}
	m, err := manager.New(cfg, delegate, reach, logger)
	if err != nil {
		return nil, nil, err
	}
	return m, func() { m.Close() }, nil
}
