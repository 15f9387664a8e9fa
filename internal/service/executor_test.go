package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/allocator"
	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/config"
	crypto2 "wallet-custody/internal/crypto"
	"wallet-custody/internal/custody"
	"wallet-custody/internal/ledger"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/rpc"
	"wallet-custody/internal/signer"
	"wallet-custody/internal/vapi"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxOpenConns:    1,
		MaxRetries:      3,
		CandidateWindow: 4,
		KeyType:         "secp256k1",
		Concurrency:     4,
		MaxBatch:        100,
	}
}

func newTestExecutor(t *testing.T, node *vapi.Node) (*Executor, *repository.Store) {
	t.Helper()
	store, err := repository.OpenStore(filepath.Join(t.TempDir(), "custody.db"), repository.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sealer, err := crypto2.NewSealerWithKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	ex, err := NewExecutor(store, sealer, node, testConfig())
	require.NoError(t, err)
	return ex, store
}

func unsignedJSON(t *testing.T, from string) json.RawMessage {
	t.Helper()
	fromAddr, err := address.NewFromString(from)
	require.NoError(t, err)
	to, err := address.NewIDAddress(1001)
	require.NoError(t, err)
	raw, err := json.Marshal(&types.Message{
		To:         to,
		From:       fromAddr,
		Nonce:      3,
		Value:      abi.NewTokenAmount(10),
		GasLimit:   1_000_000,
		GasFeeCap:  abi.NewTokenAmount(100),
		GasPremium: abi.NewTokenAmount(10),
	})
	require.NoError(t, err)
	return raw
}

func TestSignTransactionRecordsAndCounts(t *testing.T) {
	ex, store := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 2)
	require.NoError(t, err)
	w, err := ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A", Email: "a@x.com"})
	require.NoError(t, err)

	start := time.Now()
	resp, err := ex.SignTransaction(ctx, &SignRequest{PrincipalID: "A", Transaction: unsignedJSON(t, w.WalletAddress)})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, w.WalletAddress, resp.WalletAddress)
	assert.NotEmpty(t, resp.LedgerID)

	rec, err := store.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.SignatureCount)
	require.NotNil(t, rec.LastSignedAt)
	assert.False(t, rec.LastSignedAt.Before(start))

	entry, err := store.GetSignedTransaction(ctx, resp.LedgerID)
	require.NoError(t, err)
	assert.Equal(t, resp.RawSignedTransaction, entry.RawSignedTransaction)

	hist, err := ex.SignatureHistory(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hist.SignatureCount)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, resp.MessageCid, hist.Entries[0].MessageCid)
}

func TestSignTransactionHexString(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	w, err := ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)

	var msg types.Message
	require.NoError(t, json.Unmarshal(unsignedJSON(t, w.WalletAddress), &msg))
	data, err := msg.Serialize()
	require.NoError(t, err)
	quoted, err := json.Marshal(hex.EncodeToString(data))
	require.NoError(t, err)

	resp, err := ex.SignTransaction(ctx, &SignRequest{PrincipalID: "A", Transaction: quoted})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RawSignedTransaction)
}

func TestSignTransactionUnassignedWritesNothing(t *testing.T) {
	ex, store := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	w, err := ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)

	_, err = ex.SignTransaction(ctx, &SignRequest{PrincipalID: "stranger", Transaction: unsignedJSON(t, w.WalletAddress)})
	assert.Equal(t, KindNotFound, KindOf(err))

	entries, err := store.ListSignedTransactions(ctx, repository.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSignTransactionMalformed(t *testing.T) {
	ex, store := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	_, err = ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)

	for _, tx := range []string{``, `null`, `"not-hex"`, `{"Version": 0}`} {
		_, err = ex.SignTransaction(ctx, &SignRequest{PrincipalID: "A", Transaction: json.RawMessage(tx)})
		assert.Equal(t, KindMalformedTx, KindOf(err), "transaction %q", tx)
	}

	rec, err := store.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Zero(t, rec.SignatureCount)
}

func TestSignTransactionEmptyPrincipal(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)
	_, err := ex.SignTransaction(context.Background(), &SignRequest{Transaction: json.RawMessage(`{}`)})
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestConcurrentSigningCountsExactly(t *testing.T) {
	ex, store := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	w, err := ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)
	tx := unsignedJSON(t, w.WalletAddress)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := ex.SignTransaction(ctx, &SignRequest{PrincipalID: "A", Transaction: tx})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	rec, err := store.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), rec.SignatureCount)

	v, err := ex.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, v.Intact)
	assert.Equal(t, n, v.Entries)
}

func TestPoolExhaustedKind(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)
	ctx := context.Background()

	resp, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResponse{Status: StatusSuccess, Count: 1}, *resp)

	_, err = ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)
	_, err = ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "B"})
	assert.Equal(t, KindPoolExhausted, KindOf(err))

	_, err = ex.ProvisionWallets(ctx, 0)
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	st, err := ex.PoolStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Assigned)
}

func TestCancelledContextKind(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)
	_, err := ex.ProvisionWallets(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	assert.Equal(t, KindCanceled, KindOf(err))

	st, err := ex.PoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Assigned)
}

func TestPushWithoutNode(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)
	_, err := ex.PushSignedTransaction(context.Background(), "whatever", false)
	assert.ErrorIs(t, err, ErrNoNode)
}

func TestPushSignedTransaction(t *testing.T) {
	var (
		mu       sync.Mutex
		methods  []string
		pushedAs string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		defer mu.Unlock()
		methods = append(methods, req.Method)

		var result interface{}
		switch req.Method {
		case "Filecoin.MpoolPush":
			result = map[string]string{"/": pushedAs}
		case "Filecoin.StateWaitMsg":
			result = map[string]interface{}{"Height": 77, "Receipt": map[string]int{"ExitCode": 0}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
	defer srv.Close()

	ex, _ := newTestExecutor(t, vapi.NewNode(rpc.NewLotusApi(srv.URL, "")))
	ctx := context.Background()

	_, err := ex.ProvisionWallets(ctx, 1)
	require.NoError(t, err)
	w, err := ex.GetOrAssignWallet(ctx, &WalletRequest{PrincipalID: "A"})
	require.NoError(t, err)
	signed, err := ex.SignTransaction(ctx, &SignRequest{PrincipalID: "A", Transaction: unsignedJSON(t, w.WalletAddress)})
	require.NoError(t, err)
	mu.Lock()
	pushedAs = signed.MessageCid
	mu.Unlock()

	res, err := ex.PushSignedTransaction(ctx, signed.LedgerID, true)
	require.NoError(t, err)
	assert.Equal(t, signed.MessageCid, res.MessageCid.String())
	require.NotNil(t, res.Lookup)
	assert.Equal(t, abi.ChainEpoch(77), res.Lookup.Height)
	mu.Lock()
	assert.Equal(t, []string{"Filecoin.MpoolPush", "Filecoin.StateWaitMsg"}, methods)
	mu.Unlock()

	_, err = ex.PushSignedTransaction(ctx, "missing", false)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{repository.ErrNotFound, KindNotFound},
		{fmt.Errorf("%w: %w", signer.ErrCustodyFailure, custody.ErrPrincipalNotAssigned), KindNotFound},
		{fmt.Errorf("%w: %w", signer.ErrCustodyFailure, custody.ErrKeyUnsealFailed), KindCustodyFailure},
		{allocator.ErrPoolExhausted, KindPoolExhausted},
		{repository.ErrAllocationConflict, KindAllocationConflict},
		{allocator.ErrInvalidArgument, KindInvalidArgument},
		{signer.ErrMalformedTransaction, KindMalformedTx},
		{&ledger.PartialWriteError{LedgerID: "x", Err: repository.ErrNotFound}, KindPartialLedgerWrite},
		{fmt.Errorf("%w: %w", allocator.ErrProvisioning, repository.ErrStorage), KindProvisioning},
		{fmt.Errorf("%w: %w", ledger.ErrLedger, repository.ErrStorage), KindStorage},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("%w: %w", repository.ErrStorage, context.DeadlineExceeded), KindCanceled},
		{&ledger.PartialWriteError{LedgerID: "x", Err: context.Canceled}, KindPartialLedgerWrite},
		{errors.New("mystery"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.err), "%v", c.err)
	}
}
