package aifs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AssetStore = (*Client)(nil)

// ConnState is the connection lifecycle state
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds AIFS store connection configuration
type Config struct {
	// Addr is the store endpoint (host:port)
	Addr string

	// DialTimeout bounds connection establishment
	DialTimeout time.Duration

	// CallTimeout bounds each remote call unless the context carries an
	// earlier deadline
	CallTimeout time.Duration

	// PutChunkSize is the streamed upload chunk size in bytes
	PutChunkSize int
}

// DefaultConfig returns sensible defaults
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		CallTimeout:  30 * time.Second,
		PutChunkSize: 1 << 20,
	}
}

// Client speaks the AIFS binary protocol over a single TCP connection.
// RPCs are serialised on the connection; the state flag transitions to
// Connected only after a successful liveness probe, and any transport
// error drops the connection back to Disconnected. Callers of a
// disconnected client fail fast with domain.ErrStoreUnavailable.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex // guards conn and serialises in-flight calls
	conn  net.Conn
	state atomic.Int32
}

// NewClient creates a client for the given store endpoint
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.PutChunkSize <= 0 {
		cfg.PutChunkSize = 1 << 20
	}
	return &Client{cfg: cfg, logger: logger}
}

// State returns the current connection state
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Connect dials the store, performs the handshake and probes liveness.
// The client reports Connected only after the probe succeeds.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnState(c.state.Load()) == StateConnected {
		return nil
	}
	c.state.Store(int32(StateConnecting))

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("%w: dial %s: %v", domain.ErrStoreUnavailable, c.cfg.Addr, err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		c.state.Store(int32(StateDisconnected))
		return err
	}
	c.conn = conn

	// Liveness probe before advertising the connection
	if err := c.doCallLocked(ctx, opPing, nil); err != nil {
		c.conn.Close()
		c.conn = nil
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("%w: liveness probe failed: %v", domain.ErrStoreUnavailable, err)
	}

	c.state.Store(int32(StateConnected))
	c.logger.Info("aifs store connected", "addr", c.cfg.Addr)
	return nil
}

func (c *Client) handshake(conn net.Conn) error {
	deadline := time.Now().Add(c.cfg.DialTimeout)
	_ = conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(handshakeMagic); err != nil {
		return fmt.Errorf("%w: handshake write: %v", domain.ErrStoreUnavailable, err)
	}
	echo := make([]byte, len(handshakeMagic))
	if _, err := io.ReadFull(conn, echo); err != nil {
		return fmt.Errorf("%w: handshake read: %v", domain.ErrStoreUnavailable, err)
	}
	for i, b := range handshakeMagic {
		if echo[i] != b {
			return fmt.Errorf("%w: handshake mismatch", domain.ErrStoreProtocol)
		}
	}
	return nil
}

// Close tears the connection down
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateDisconnected))
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.logger.Info("aifs store disconnected", "addr", c.cfg.Addr)
	return err
}

// call runs one request/response exchange. Transport errors drop the
// connection; a response status is translated to a domain error.
func (c *Client) call(ctx context.Context, op byte, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnState(c.state.Load()) != StateConnected || c.conn == nil {
		return nil, domain.ErrStoreUnavailable
	}
	return c.exchangeLocked(ctx, op, payload)
}

// doCallLocked is the probe path used during Connect, before the client
// advertises itself as connected. Caller holds c.mu.
func (c *Client) doCallLocked(ctx context.Context, op byte, payload []byte) error {
	_, err := c.exchangeLocked(ctx, op, payload)
	return err
}

func (c *Client) exchangeLocked(ctx context.Context, op byte, payload []byte) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.CallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	if err := writeFrame(c.conn, frame{Op: op, Payload: payload}); err != nil {
		return nil, c.dropLocked(op, err)
	}
	resp, err := readFrame(c.conn)
	if err != nil {
		if errors.Is(err, domain.ErrStoreProtocol) {
			// Oversized frame: the stream is unusable from here on
			c.dropLocked(op, err)
			return nil, err
		}
		return nil, c.dropLocked(op, err)
	}

	if resp.Op != op|opResponseFlag {
		err := fmt.Errorf("%w: response op 0x%02x for request 0x%02x", domain.ErrStoreProtocol, resp.Op, op)
		c.dropLocked(op, err)
		return nil, err
	}

	switch resp.Status {
	case statusOK:
		return resp.Payload, nil
	case statusNotFound:
		return nil, domain.ErrAssetNotFound
	case statusError:
		msg := "remote error"
		if r := newWireReader(resp.Payload); r.Remaining() > 0 {
			if s, err := r.String(); err == nil {
				msg = s
			}
		}
		return nil, fmt.Errorf("aifs store: %s", msg)
	default:
		err := fmt.Errorf("%w: unknown response status 0x%02x", domain.ErrStoreProtocol, resp.Status)
		c.dropLocked(op, err)
		return nil, err
	}
}

// dropLocked closes the connection after a transport failure. Timeouts
// are treated exactly as connectivity failures. Caller holds c.mu.
func (c *Client) dropLocked(op byte, err error) error {
	c.logger.Warn("aifs transport failure, dropping connection", "op", fmt.Sprintf("0x%02x", op), "error", err)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateDisconnected))
	if errors.Is(err, domain.ErrStoreProtocol) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// Ping checks store liveness
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, opPing, nil)
	c.logOutcome("ping", err)
	return err
}

// PutAsset streams raw bytes to the store as a begin/chunk/commit
// sequence and returns the store-assigned asset id
func (c *Client) PutAsset(ctx context.Context, req driven.PutAssetRequest) (string, error) {
	kind, err := encodeKind(req.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var begin wireWriter
	begin.Byte(kind)
	begin.StringMap(req.Metadata)
	begin.Edges(req.Parents)
	begin.Embedding(req.Embedding)

	// The store tracks one put session per connection, so the
	// begin/chunk/commit frames of an upload must not interleave with
	// another caller's. Hold the connection for the whole sequence.
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnState(c.state.Load()) != StateConnected || c.conn == nil {
		return "", domain.ErrStoreUnavailable
	}

	if _, err := c.exchangeLocked(ctx, opPutBegin, begin.Bytes()); err != nil {
		c.logOutcome("put_asset", err)
		return "", err
	}

	data := req.Data
	for len(data) > 0 {
		n := c.cfg.PutChunkSize
		if n > len(data) {
			n = len(data)
		}
		var chunk wireWriter
		chunk.Blob(data[:n])
		if _, err := c.exchangeLocked(ctx, opPutChunk, chunk.Bytes()); err != nil {
			c.logOutcome("put_asset", err)
			return "", err
		}
		data = data[n:]
	}

	resp, err := c.exchangeLocked(ctx, opPutCommit, nil)
	if err != nil {
		c.logOutcome("put_asset", err)
		return "", err
	}
	id, err := newWireReader(resp).String()
	if err != nil {
		c.logOutcome("put_asset", err)
		return "", err
	}
	c.logger.Info("aifs put_asset ok", "remote_id", id, "size", len(req.Data))
	return id, nil
}

// GetAsset fetches asset metadata, and the raw bytes when includeData
func (c *Client) GetAsset(ctx context.Context, id string, includeData bool) (*domain.RemoteAsset, error) {
	var req wireWriter
	req.String(id)
	if includeData {
		req.Byte(1)
	} else {
		req.Byte(0)
	}

	resp, err := c.call(ctx, opGetAsset, req.Bytes())
	if err != nil {
		c.logOutcome("get_asset", err)
		return nil, err
	}

	asset, err := decodeRemoteAsset(newWireReader(resp), includeData)
	c.logOutcome("get_asset", err)
	return asset, err
}

func decodeRemoteAsset(r *wireReader, includeData bool) (*domain.RemoteAsset, error) {
	id, err := r.String()
	if err != nil {
		return nil, err
	}
	kindByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	kind, err := decodeKind(kindByte)
	if err != nil {
		return nil, err
	}
	size, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	createdUnix, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	meta, err := r.StringMap()
	if err != nil {
		return nil, err
	}
	parents, err := r.Edges()
	if err != nil {
		return nil, err
	}
	children, err := r.StringList()
	if err != nil {
		return nil, err
	}

	asset := &domain.RemoteAsset{
		ID:        id,
		Kind:      kind,
		Size:      int64(size),
		CreatedAt: time.Unix(int64(createdUnix), 0).UTC(),
		Metadata:  meta,
		Parents:   parents,
		Children:  children,
	}

	if includeData {
		hasData, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if hasData == 1 {
			if asset.Data, err = r.Blob(); err != nil {
				return nil, err
			}
		}
	}
	return asset, nil
}

// VectorSearch returns up to k matches. The store pre-sorts results by
// descending score; the client validates the ordering and treats a
// violation as a protocol error, but never re-sorts.
func (c *Client) VectorSearch(ctx context.Context, queryEmbedding []float32, k int, filter domain.StringMap) ([]domain.VectorMatch, error) {
	var req wireWriter
	req.Embedding(queryEmbedding)
	req.Uint32(uint32(k))
	req.StringMap(filter)

	resp, err := c.call(ctx, opVectorSearch, req.Bytes())
	if err != nil {
		c.logOutcome("vector_search", err)
		return nil, err
	}

	r := newWireReader(resp)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}

	matches := make([]domain.VectorMatch, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.String()
		if err != nil {
			return nil, err
		}
		score, err := r.Float32()
		if err != nil {
			return nil, err
		}
		meta, err := r.StringMap()
		if err != nil {
			return nil, err
		}
		if i > 0 && score > matches[i-1].Score {
			err := fmt.Errorf("%w: vector search scores not non-increasing (%f after %f)",
				domain.ErrStoreProtocol, score, matches[i-1].Score)
			c.logOutcome("vector_search", err)
			return nil, err
		}
		matches = append(matches, domain.VectorMatch{AssetID: id, Score: score, Metadata: meta})
	}

	c.logger.Info("aifs vector_search ok", "k", k, "matches", len(matches))
	return matches, nil
}

// ListAssets is simple pass-through pagination
func (c *Client) ListAssets(ctx context.Context, limit, offset int) ([]*domain.RemoteAsset, error) {
	var req wireWriter
	req.Uint32(uint32(limit))
	req.Uint32(uint32(offset))

	resp, err := c.call(ctx, opListAssets, req.Bytes())
	if err != nil {
		c.logOutcome("list_assets", err)
		return nil, err
	}

	r := newWireReader(resp)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	assets := make([]*domain.RemoteAsset, 0, count)
	for i := uint32(0); i < count; i++ {
		asset, err := decodeRemoteAsset(r, false)
		if err != nil {
			c.logOutcome("list_assets", err)
			return nil, err
		}
		assets = append(assets, asset)
	}

	c.logger.Info("aifs list_assets ok", "count", len(assets))
	return assets, nil
}

// CreateSnapshot groups assets under a namespace at a point in time
func (c *Client) CreateSnapshot(ctx context.Context, namespace string, assetIDs []string, metadata domain.StringMap) (string, error) {
	var req wireWriter
	req.String(namespace)
	req.Uint32(uint32(len(assetIDs)))
	for _, id := range assetIDs {
		req.String(id)
	}
	req.StringMap(metadata)

	resp, err := c.call(ctx, opCreateSnapshot, req.Bytes())
	if err != nil {
		c.logOutcome("create_snapshot", err)
		return "", err
	}
	id, err := newWireReader(resp).String()
	if err != nil {
		c.logOutcome("create_snapshot", err)
		return "", err
	}
	c.logger.Info("aifs create_snapshot ok", "snapshot_id", id, "namespace", namespace)
	return id, nil
}

// DeleteAsset requests removal of a stored asset
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	var req wireWriter
	req.String(id)
	_, err := c.call(ctx, opDeleteAsset, req.Bytes())
	c.logOutcome("delete_asset", err)
	return err
}

func (c *Client) logOutcome(op string, err error) {
	if err != nil {
		c.logger.Warn("aifs "+op+" failed", "error", err)
		return
	}
	c.logger.Debug("aifs " + op + " ok")
}
