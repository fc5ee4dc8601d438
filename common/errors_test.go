package common_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobxfer/blobxfer/common"
)

func TestErrorCodeStringRoundTrip(t *testing.T) {
	a := assert.New(t)
	codes := []common.ErrorCode{
		common.EErrorCode.None(),
		common.EErrorCode.NetworkUnreachable(),
		common.EErrorCode.TransportFailure(),
		common.EErrorCode.AuthenticationFailure(),
		common.EErrorCode.ClientRestorationFailure(),
		common.EErrorCode.DecompositionFailure(),
		common.EErrorCode.PersistenceFailure(),
		common.EErrorCode.Canceled(),
		common.EErrorCode.InvalidState(),
	}
	for _, c := range codes {
		var parsed common.ErrorCode
		a.NoError(parsed.Parse(c.String()))
		a.Equal(c, parsed)
	}
}

func TestErrorCodeJSONRoundTrip(t *testing.T) {
	r := require.New(t)
	data, err := json.Marshal(common.EErrorCode.NetworkUnreachable())
	r.NoError(err)

	var decoded common.ErrorCode
	r.NoError(json.Unmarshal(data, &decoded))
	r.Equal(common.EErrorCode.NetworkUnreachable(), decoded)
}

func TestRetryable(t *testing.T) {
	a := assert.New(t)
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		a.True(common.Retryable(code), "status %d should be retryable", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 409} {
		a.False(common.Retryable(code), "status %d should not be retryable", code)
	}
}

func TestIsTerminalErrorCode(t *testing.T) {
	a := assert.New(t)
	a.True(common.IsTerminalErrorCode(common.EErrorCode.Canceled()))
	a.True(common.IsTerminalErrorCode(common.EErrorCode.InvalidState()))
	a.False(common.IsTerminalErrorCode(common.EErrorCode.NetworkUnreachable()))
}

func TestTransferErrorWrapsCause(t *testing.T) {
	r := require.New(t)
	cause := errors.New("dial tcp: connection refused")
	te := common.NewTransferError(common.EErrorCode.NetworkUnreachable(), "probing source", cause)

	r.Contains(te.Error(), "probing source")
	r.Contains(te.Error(), "connection refused")
	r.ErrorIs(te, cause)
}
