package types

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
)

type Receipt struct {
	ExitCode int64 `json:"ExitCode"`
}

type MsgLookup struct {
	Message cid.Cid        `json:"Message"`
	Receipt Receipt        `json:"Receipt"`
	Height  abi.ChainEpoch `json:"Height"`
}
