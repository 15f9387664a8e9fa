package service

import (
	"context"
	"errors"

	"wallet-custody/internal/allocator"
	"wallet-custody/internal/custody"
	"wallet-custody/internal/ledger"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/signer"
)

// Kind 调用方可见的错误类别
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindPoolExhausted      Kind = "pool_exhausted"
	KindAllocationConflict Kind = "allocation_conflict"
	KindInvalidArgument    Kind = "invalid_argument"
	KindMalformedTx        Kind = "malformed_transaction"
	KindCustodyFailure     Kind = "custody_failure"
	KindPartialLedgerWrite Kind = "partial_ledger_write"
	KindProvisioning       Kind = "provisioning_failed"
	KindStorage            Kind = "storage_error"
	KindCanceled           Kind = "canceled"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Order matters: the more specific cause wins when
// several sentinels are wrapped together.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ledger.ErrPartialLedgerWrite):
		return KindPartialLedgerWrite
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, custody.ErrPrincipalNotAssigned), errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, allocator.ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, allocator.ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, signer.ErrMalformedTransaction):
		return KindMalformedTx
	case errors.Is(err, allocator.ErrProvisioning):
		return KindProvisioning
	case errors.Is(err, signer.ErrCustodyFailure), errors.Is(err, signer.ErrSigningFailed):
		return KindCustodyFailure
	case errors.Is(err, repository.ErrAllocationConflict):
		return KindAllocationConflict
	case errors.Is(err, repository.ErrStorage), errors.Is(err, ledger.ErrLedger):
		return KindStorage
	default:
		return KindInternal
	}
}
