package cmd

import (
	"fmt"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/transport"
	"github.com/blobxfer/blobxfer/transport/localfs"
)

// localDelegate is the harness's manager.Delegate: a single always-live
// localfs.Client regardless of restoration id, and state changes printed
// through the same logger the manager uses.
type localDelegate struct {
	client *localfs.Client
	logger common.ILogger
}

func newLocalDelegate(client *localfs.Client, logger common.ILogger) *localDelegate {
	return &localDelegate{client: client, logger: logger}
}

func (d *localDelegate) Client(restorationID string) (transport.Client, bool) {
	return d.client, true
}

func (d *localDelegate) StateChanged(blobID string, newState common.State, err *common.TransferError) {
	if err != nil {
		d.logger.Log(common.LogInfo, fmt.Sprintf("%s -> %s (%s)", blobID, newState, err.Error()))
		return
	}
	d.logger.Log(common.LogInfo, fmt.Sprintf("%s -> %s", blobID, newState))
}
