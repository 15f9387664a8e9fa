package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("rpc")

// DefaultCallTimeout bounds a single call unless the method long-polls.
const DefaultCallTimeout = 60 * time.Second

// 等待上链的方法可能阻塞数个 epoch，只受调用方 ctx 约束
var longPoll = map[string]bool{
	"StateWaitMsg": true,
}

// 错误信息里最多保留的响应体长度
const maxErrBody = 256

// Client is a JSON-RPC 2.0 client for a Lotus node endpoint.
type Client struct {
	url         string
	token       string
	client      *http.Client
	callTimeout time.Duration
	nextID      atomic.Int64
}

type jsonRPCRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type jsonRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// Error is a JSON-RPC 2.0 error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error: %s (code: %d)", e.Message, e.Code)
}

// HTTPError is returned when the node answers with a non-200 status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.Status, e.Body)
}

// NewLotusApi creates a Lotus API client for the given endpoint.
// An empty token sends unauthenticated requests.
func NewLotusApi(apiURL, apiToken string) *Client {
	if apiToken != "" {
		log.Infof("NewLotusApi: connecting to %s (with token)", apiURL)
	} else {
		log.Warnf("NewLotusApi: connecting to %s (no token)", apiURL)
	}

	return &Client{
		url:         apiURL,
		token:       apiToken,
		client:      &http.Client{},
		callTimeout: DefaultCallTimeout,
	}
}

// SetCallTimeout changes the per-call deadline; d <= 0 disables it.
func (c *Client) SetCallTimeout(d time.Duration) {
	c.callTimeout = d
}

// Call executes "Filecoin.<method>" and decodes the result into result
// when it is non-nil.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.callTimeout > 0 && !longPoll[method] {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	log.Debugf("Call: %s id=%d params=%d", method, id, len(params))

	jsonData, err := json.Marshal(jsonRPCRequest{
		Jsonrpc: "2.0",
		Method:  "Filecoin." + method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return xerrors.Errorf("marshalling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return xerrors.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Call: %s to %s failed: %v", method, c.url, err)
		return xerrors.Errorf("sending %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("reading %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		herr := &HTTPError{Status: resp.StatusCode, Body: truncate(string(body))}
		log.Errorf("Call: %s: %v", method, herr)
		return herr
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return xerrors.Errorf("decoding %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		log.Errorf("Call: %s: %v", method, rpcResp.Error)
		return rpcResp.Error
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return xerrors.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxErrBody {
		return s
	}
	return s[:maxErrBody] + "..."
}
