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

package manager

import (
	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/transport"
)

// Delegate lets the host application plug into the Manager: supply a
// transport.Client for a restoration id, and observe state changes as they
// happen.
type Delegate interface {
	// Client resolves a transfer's ClientRestorationID back into a usable
	// transport.Client. Returning false means restoration failed, which the
	// Manager surfaces as a ClientRestorationFailure.
	Client(restorationID string) (transport.Client, bool)

	// StateChanged notifies the delegate whenever a BlobTransfer's state
	// changes, including the terminal state and any attached error.
	StateChanged(blobID string, newState common.State, err *common.TransferError)
}
