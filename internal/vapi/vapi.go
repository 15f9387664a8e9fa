package vapi

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/rpc"
)

var log = logging.Logger("vapi")

// DefaultConfidence 等待消息确认的 tipset 数
const DefaultConfidence = 3

// Caller is the part of rpc.Client the node needs.
type Caller interface {
	Call(ctx context.Context, method string, params []interface{}, result interface{}) error
}

var _ Caller = (*rpc.Client)(nil)

// Node Lotus API 客户端节点
// 只暴露广播已签名消息所需的方法，签名本身从不经过节点
type Node struct {
	Caller
}

func NewNode(c Caller) *Node {
	return &Node{c}
}

// MpoolPush 将已签名的消息推送到内存池并返回其 CID
func (n *Node) MpoolPush(ctx context.Context, signedMsg *types.SignedMessage) (cid.Cid, error) {
	log.Debugf("MpoolPush: pushing signed message from %s nonce %d", signedMsg.Message.From, signedMsg.Message.Nonce)
	var msgCid cid.Cid
	err := n.Call(ctx, "MpoolPush", []interface{}{signedMsg}, &msgCid)
	if err != nil {
		log.Errorf("MpoolPush: failed to push message: %v", err)
		return cid.Undef, fmt.Errorf("failed to push message: %w", err)
	}

	log.Debugf("MpoolPush: message pushed successfully, CID: %s", msgCid)
	return msgCid, nil
}

// StateWaitMsg 等待消息被打包并返回查找结果
// 非零退出码视为失败
func (n *Node) StateWaitMsg(ctx context.Context, msgCid cid.Cid, confidence uint64) (*types.MsgLookup, error) {
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	log.Debugf("StateWaitMsg: waiting for message %s (confidence %d)", msgCid, confidence)
	var msgLookup types.MsgLookup
	err := n.Call(ctx, "StateWaitMsg", []interface{}{msgCid, confidence}, &msgLookup)
	if err != nil {
		log.Errorf("StateWaitMsg: failed to wait for message: %v", err)
		return nil, fmt.Errorf("failed to wait for message: %w", err)
	}

	if msgLookup.Receipt.ExitCode != 0 {
		log.Errorf("StateWaitMsg: message %s failed with exit code: %d", msgCid, msgLookup.Receipt.ExitCode)
		return &msgLookup, fmt.Errorf("message execution failed with exit code: %d", msgLookup.Receipt.ExitCode)
	}

	log.Debugf("StateWaitMsg: message confirmed at height %d", msgLookup.Height)
	return &msgLookup, nil
}
