package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"id":7,"result":{"amount":"100"}}`))
	require.NoError(t, err)
	assert.False(t, resp.HasError())
	assert.True(t, resp.ID.Equal(NewIDInt(7)))

	var out struct {
		Amount string `json:"amount"`
	}
	require.NoError(t, resp.GetResultAs(&out))
	assert.Equal(t, "100", out.Amount)
}

func TestParseResponse_Error(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"id":"a","error":{"code":-32602,"message":"bad address","data":{"field":"address"}}}`))
	require.NoError(t, err)
	require.True(t, resp.HasError())
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "bad address", resp.Error.Message)
	assert.JSONEq(t, `{"field":"address"}`, string(resp.Error.Data))
}

func TestParseResponse_NullResultIsPresent(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"id":1,"result":null}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), resp.Result)
}

func TestParseResponse_Malformed(t *testing.T) {
	for _, body := range []string{
		`{"id":1}`,
		`{"id":1,"result":1,"error":{"message":"x"}}`,
		`not json`,
	} {
		_, err := ParseResponse([]byte(body))
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrMalformedResponse), body)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("get_balance", map[string]string{"address": "sei1abc"}, NewIDInt(1))
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	data, err := req.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"get_balance","params":{"address":"sei1abc"}}`, string(data))

	empty, err := NewRequest("get_latest_block", nil, NewIDString("x"))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("{}"), empty.Params)
}

func TestError_IsRateLimited(t *testing.T) {
	assert.True(t, NewError(CodeRateLimited, "slow down").IsRateLimited())
	assert.True(t, NewError(CodeLimitExceeded, "limit exceeded").IsRateLimited())
	assert.False(t, NewError(CodeInvalidParams, "bad").IsRateLimited())
}
