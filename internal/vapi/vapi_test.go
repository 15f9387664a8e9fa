package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/rpc"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func lotus(t *testing.T, token string, handle func(method string, params []json.RawMessage) (interface{}, *rpc.Error)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rerr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signedMessage(t *testing.T) *types.SignedMessage {
	t.Helper()
	to, err := address.NewIDAddress(100)
	require.NoError(t, err)
	from, err := address.NewIDAddress(200)
	require.NoError(t, err)
	return &types.SignedMessage{
		Message: types.Message{
			To: to, From: from, Nonce: 9,
			Value: abi.NewTokenAmount(1), GasFeeCap: abi.NewTokenAmount(1), GasPremium: abi.NewTokenAmount(1),
		},
		Signature: crypto.Signature{Type: crypto.SigTypeSecp256k1, Data: []byte{1, 2, 3}},
	}
}

func TestMpoolPush(t *testing.T) {
	sm := signedMessage(t)
	want := messageCid(t, &sm.Message)

	srv := lotus(t, "secret", func(method string, params []json.RawMessage) (interface{}, *rpc.Error) {
		assert.Equal(t, "Filecoin.MpoolPush", method)
		assert.Len(t, params, 1)
		return want, nil
	})

	node := NewNode(rpc.NewLotusApi(srv.URL, "secret"))
	got, err := node.MpoolPush(context.Background(), sm)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMpoolPushRPCError(t *testing.T) {
	srv := lotus(t, "", func(string, []json.RawMessage) (interface{}, *rpc.Error) {
		return nil, &rpc.Error{Code: 1, Message: "nonce too low"}
	})

	_, err := NewNode(rpc.NewLotusApi(srv.URL, "")).MpoolPush(context.Background(), signedMessage(t))
	var rerr *rpc.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "nonce too low", rerr.Message)
}

func TestMpoolPushUnauthorized(t *testing.T) {
	srv := lotus(t, "secret", func(string, []json.RawMessage) (interface{}, *rpc.Error) {
		t.Error("handler must not run without a token")
		return nil, nil
	})

	_, err := NewNode(rpc.NewLotusApi(srv.URL, "")).MpoolPush(context.Background(), signedMessage(t))
	assert.ErrorContains(t, err, "HTTP error 401")
}

func TestStateWaitMsg(t *testing.T) {
	c := messageCid(t, &signedMessage(t).Message)

	srv := lotus(t, "", func(method string, params []json.RawMessage) (interface{}, *rpc.Error) {
		assert.Equal(t, "Filecoin.StateWaitMsg", method)
		if assert.Len(t, params, 2) {
			assert.JSONEq(t, "3", string(params[1]))
		}
		return types.MsgLookup{Message: c, Height: 1234}, nil
	})

	lookup, err := NewNode(rpc.NewLotusApi(srv.URL, "")).StateWaitMsg(context.Background(), c, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.ChainEpoch(1234), lookup.Height)
}

func TestStateWaitMsgExitCode(t *testing.T) {
	c := messageCid(t, &signedMessage(t).Message)
	srv := lotus(t, "", func(string, []json.RawMessage) (interface{}, *rpc.Error) {
		return types.MsgLookup{Message: c, Receipt: types.Receipt{ExitCode: 16}}, nil
	})

	lookup, err := NewNode(rpc.NewLotusApi(srv.URL, "")).StateWaitMsg(context.Background(), c, 5)
	assert.ErrorContains(t, err, "exit code: 16")
	require.NotNil(t, lookup)
	assert.Equal(t, int64(16), lookup.Receipt.ExitCode)
}

func messageCid(t *testing.T, m *types.Message) cid.Cid {
	t.Helper()
	c, err := m.Cid()
	require.NoError(t, err)
	return c
}
