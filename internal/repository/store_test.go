package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "custody.db"), Options{MaxOpenConns: 1, CandidateWindow: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedWallets(t *testing.T, s *Store, n int) []*models.WalletRecord {
	t.Helper()
	recs := make([]*models.WalletRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, &models.WalletRecord{
			WalletAddress: fmt.Sprintf("f1testaddress%04d", i),
			KeyType:       "secp256k1",
			EncryptedKey:  []byte{0x01, 0x02, byte(i)},
		})
	}
	require.NoError(t, s.BulkInsert(context.Background(), recs))
	return recs
}

func TestAssignAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedWallets(t, s, 2)

	rec, err := s.FindOneUnassigned(ctx)
	require.NoError(t, err)
	assert.False(t, rec.Assigned())
	assert.Empty(t, rec.EncryptedKey, "pool lookups must not load key material")

	contacts := []Contact{{Kind: models.ContactEmail, Value: "a@x.com", Hash: "h-a"}}
	require.NoError(t, s.Assign(ctx, rec.ID, "A", contacts))

	got, err := s.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, rec.WalletAddress, got.WalletAddress)
	assert.Equal(t, []string{"a@x.com"}, got.ContactEmails())
	assert.Equal(t, []string{"h-a"}, got.ContactEmailHashes())
	assert.Empty(t, got.ContactMobiles())
	assert.Empty(t, got.EncryptedKey)

	_, err = s.FindByPrincipal(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 2)

	require.NoError(t, s.Assign(ctx, recs[0].ID, "A", nil))

	err := s.Assign(ctx, recs[0].ID, "B", nil)
	assert.ErrorIs(t, err, ErrAllocationConflict, "record already claimed")

	err = s.Assign(ctx, recs[1].ID, "A", nil)
	assert.ErrorIs(t, err, ErrAllocationConflict, "principal already bound elsewhere")

	err = s.Assign(ctx, 9999, "C", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	// the losing assignment must not leave contacts behind
	free, err := s.FindOneUnassigned(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs[1].ID, free.ID)
	assert.Empty(t, free.Contacts)
}

func TestAppendContactsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 1)
	require.NoError(t, s.Assign(ctx, recs[0].ID, "A", []Contact{{Kind: models.ContactEmail, Value: "a@x.com", Hash: "h1"}}))

	mobile := Contact{Kind: models.ContactMobile, Value: "+1555", Hash: "h2"}
	require.NoError(t, s.AppendContacts(ctx, recs[0].ID, []Contact{mobile}))
	require.NoError(t, s.AppendContacts(ctx, recs[0].ID, []Contact{mobile, mobile}))

	got, err := s.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"+1555"}, got.ContactMobiles())
	assert.Equal(t, []string{"h2"}, got.ContactMobileHashes())
	assert.Len(t, got.Contacts, 2)
}

func TestAppendContactsRequiresAssignedWallet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 1)

	err := s.AppendContacts(ctx, recs[0].ID, []Contact{{Kind: models.ContactEmail, Value: "x", Hash: "y"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkInsertIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []*models.WalletRecord{
		{WalletAddress: "f1dup", KeyType: "secp256k1", EncryptedKey: []byte{1}},
		{WalletAddress: "f1other", KeyType: "secp256k1", EncryptedKey: []byte{2}},
		{WalletAddress: "f1dup", KeyType: "secp256k1", EncryptedKey: []byte{3}},
	}
	err := s.BulkInsert(ctx, recs)
	assert.ErrorIs(t, err, ErrStorage)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Total)
}

func TestBulkInsertRejectsAssignedRecords(t *testing.T) {
	s := newTestStore(t)
	p := "A"
	err := s.BulkInsert(context.Background(), []*models.WalletRecord{
		{WalletAddress: "f1x", KeyType: "secp256k1", EncryptedKey: []byte{1}, PrincipalID: &p},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestFindOneUnassignedEmptyPool(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindOneUnassigned(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementSignature(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 1)
	require.NoError(t, s.Assign(ctx, recs[0].ID, "A", nil))

	at := time.Now().UTC()
	require.NoError(t, s.IncrementSignature(ctx, "A", at))
	require.NoError(t, s.IncrementSignature(ctx, "A", at.Add(time.Second)))

	got, err := s.FindByPrincipal(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.SignatureCount)
	require.NotNil(t, got.LastSignedAt)
	assert.WithinDuration(t, at.Add(time.Second), *got.LastSignedAt, time.Millisecond)

	assert.ErrorIs(t, s.IncrementSignature(ctx, "ghost", at), ErrNotFound)
}

func TestLoadKeyMaterial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 1)
	require.NoError(t, s.Assign(ctx, recs[0].ID, "A", nil))

	rec, err := s.LoadKeyMaterial(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, recs[0].EncryptedKey, rec.EncryptedKey)

	_, err = s.LoadKeyMaterial(ctx, "B")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListWalletsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recs := seedWallets(t, s, 3)
	require.NoError(t, s.Assign(ctx, recs[1].ID, "A", nil))

	assigned := true
	list, err := s.ListWallets(ctx, WalletFilter{Assigned: &assigned})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Principal())

	all, err := s.ListWallets(ctx, WalletFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, PoolStats{Total: 3, Assigned: 1, Unassigned: 2}, st)
}

func TestLedgerHashChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var appended []*models.SignedTransaction
	for i := 0; i < 3; i++ {
		rec := &models.SignedTransaction{
			LedgerID:             uuid.New().String(),
			PrincipalID:          "A",
			WalletAddress:        "f1testaddress",
			RawSignedTransaction: fmt.Sprintf("%02x", i),
			CreatedAt:            time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, s.AppendSignedTransaction(ctx, rec))
		appended = append(appended, rec)
	}

	assert.Equal(t, models.GenesisHash, appended[0].PrevHash)
	assert.Equal(t, appended[0].EntryHash, appended[1].PrevHash)
	assert.Equal(t, appended[1].EntryHash, appended[2].PrevHash)

	var walked []string
	require.NoError(t, s.WalkSignedTransactions(ctx, func(rec *models.SignedTransaction) error {
		assert.Equal(t, rec.EntryHash, rec.ComputeHash(), "stored entry must re-hash to the same value")
		walked = append(walked, rec.LedgerID)
		return nil
	}))
	assert.Equal(t, []string{appended[0].LedgerID, appended[1].LedgerID, appended[2].LedgerID}, walked)

	got, err := s.GetSignedTransaction(ctx, appended[1].LedgerID)
	require.NoError(t, err)
	assert.Equal(t, "01", got.RawSignedTransaction)

	_, err = s.GetSignedTransaction(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListSignedTransactions(ctx, LedgerFilter{PrincipalID: "A", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, appended[2].LedgerID, list[0].LedgerID, "newest first")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", dsn("/tmp/a.db"))
	assert.Equal(t, "/tmp/a.db?mode=rwc&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", dsn("/tmp/a.db?mode=rwc"))
}
