package aifs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// Wire framing for the AIFS store protocol.
//
// A connection opens with a 5-byte handshake (magic "AIFS" + version),
// echoed back by the server. After that both sides exchange frames:
//
//	[op:1][status:1][length:4 BE][payload:length]
//
// Strings are u16-length prefixed, blobs u32-length prefixed, metadata a
// u16 pair count followed by key/value strings, embeddings a u16 dimension
// count followed by packed little-endian float32 values.

const (
	protocolVersion byte = 0x01

	frameHeaderSize = 6
	maxFrameSize    = 64 << 20 // refuse frames beyond 64 MiB
)

var handshakeMagic = []byte{'A', 'I', 'F', 'S', protocolVersion}

// Operation codes
const (
	opPing           byte = 0x01
	opPutBegin       byte = 0x02
	opPutChunk       byte = 0x03
	opPutCommit      byte = 0x04
	opGetAsset       byte = 0x05
	opVectorSearch   byte = 0x06
	opListAssets     byte = 0x07
	opCreateSnapshot byte = 0x08
	opDeleteAsset    byte = 0x09

	// Responses echo the request op with the high bit set
	opResponseFlag byte = 0x80
)

// Response status codes
const (
	statusOK       byte = 0x00
	statusNotFound byte = 0x01
	statusError    byte = 0x02
)

// Asset kinds on the wire, a closed enumeration
const (
	wireKindBlob     byte = 0x00
	wireKindTensor   byte = 0x01
	wireKindEmbed    byte = 0x02
	wireKindArtifact byte = 0x03
)

func encodeKind(kind domain.RemoteKind) (byte, error) {
	switch kind {
	case domain.RemoteKindBlob:
		return wireKindBlob, nil
	case domain.RemoteKindTensor:
		return wireKindTensor, nil
	case domain.RemoteKindEmbed:
		return wireKindEmbed, nil
	case domain.RemoteKindArtifact:
		return wireKindArtifact, nil
	}
	return 0, fmt.Errorf("unknown asset kind %q", kind)
}

func decodeKind(b byte) (domain.RemoteKind, error) {
	switch b {
	case wireKindBlob:
		return domain.RemoteKindBlob, nil
	case wireKindTensor:
		return domain.RemoteKindTensor, nil
	case wireKindEmbed:
		return domain.RemoteKindEmbed, nil
	case wireKindArtifact:
		return domain.RemoteKindArtifact, nil
	}
	return "", fmt.Errorf("%w: unknown asset kind byte 0x%02x", domain.ErrStoreProtocol, b)
}

// frame is one protocol message
type frame struct {
	Op      byte
	Status  byte
	Payload []byte
}

// writeFrame serialises a frame to w
func writeFrame(w io.Writer, f frame) error {
	header := [frameHeaderSize]byte{f.Op, f.Status}
	binary.BigEndian.PutUint32(header[2:], uint32(len(f.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// readFrame reads one frame from r, enforcing the size cap
func readFrame(r io.Reader) (frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}
	length := binary.BigEndian.Uint32(header[2:])
	if length > maxFrameSize {
		return frame{}, fmt.Errorf("%w: frame length %d exceeds limit", domain.ErrStoreProtocol, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}
	return frame{Op: header[0], Status: header[1], Payload: payload}, nil
}

// wireWriter builds frame payloads
type wireWriter struct {
	buf bytes.Buffer
}

func (w *wireWriter) Byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *wireWriter) Uint16(v uint16) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], v)
	w.buf.Write(scratch[:])
}

func (w *wireWriter) Uint32(v uint32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], v)
	w.buf.Write(scratch[:])
}

func (w *wireWriter) Uint64(v uint64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	w.buf.Write(scratch[:])
}

func (w *wireWriter) String(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(s)))
	w.buf.Write(scratch[:])
	w.buf.WriteString(s)
}

func (w *wireWriter) Blob(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *wireWriter) Float32(v float32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
	w.buf.Write(scratch[:])
}

func (w *wireWriter) StringList(list []string) {
	w.Uint16(uint16(len(list)))
	for _, s := range list {
		w.String(s)
	}
}

// Embedding packs the vector as little-endian float32 values
func (w *wireWriter) Embedding(vec []float32) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(vec)))
	w.buf.Write(scratch[:])
	var f [4]byte
	for _, v := range vec {
		binary.LittleEndian.PutUint32(f[:], math.Float32bits(v))
		w.buf.Write(f[:])
	}
}

// StringMap writes metadata pairs in sorted key order for determinism
func (w *wireWriter) StringMap(m domain.StringMap) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(keys)))
	w.buf.Write(scratch[:])
	for _, k := range keys {
		w.String(k)
		w.String(m[k])
	}
}

func (w *wireWriter) Edges(edges []domain.ParentEdge) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(edges)))
	w.buf.Write(scratch[:])
	for _, e := range edges {
		w.String(e.AssetID)
		w.String(e.TransformName)
		w.String(e.TransformDigest)
	}
}

func (w *wireWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// wireReader decodes frame payloads. Any short read or malformed field is
// a protocol error.
type wireReader struct {
	r *bytes.Reader
}

func newWireReader(payload []byte) *wireReader {
	return &wireReader{r: bytes.NewReader(payload)}
}

func (r *wireReader) fail(what string, err error) error {
	return fmt.Errorf("%w: reading %s: %v", domain.ErrStoreProtocol, what, err)
}

func (r *wireReader) Byte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, r.fail("byte", err)
	}
	return b, nil
}

func (r *wireReader) Uint16() (uint16, error) {
	var scratch [2]byte
	if _, err := io.ReadFull(r.r, scratch[:]); err != nil {
		return 0, r.fail("uint16", err)
	}
	return binary.BigEndian.Uint16(scratch[:]), nil
}

func (r *wireReader) Uint32() (uint32, error) {
	var scratch [4]byte
	if _, err := io.ReadFull(r.r, scratch[:]); err != nil {
		return 0, r.fail("uint32", err)
	}
	return binary.BigEndian.Uint32(scratch[:]), nil
}

func (r *wireReader) Uint64() (uint64, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(r.r, scratch[:]); err != nil {
		return 0, r.fail("uint64", err)
	}
	return binary.BigEndian.Uint64(scratch[:]), nil
}

func (r *wireReader) String() (string, error) {
	n, err := r.Uint16()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", r.fail("string", err)
	}
	return string(buf), nil
}

func (r *wireReader) Blob() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if int64(n) > int64(r.r.Len()) {
		return nil, fmt.Errorf("%w: blob length %d exceeds remaining payload", domain.ErrStoreProtocol, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, r.fail("blob", err)
	}
	return buf, nil
}

func (r *wireReader) Embedding() ([]float32, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	vec := make([]float32, n)
	var f [4]byte
	for i := range vec {
		if _, err := io.ReadFull(r.r, f[:]); err != nil {
			return nil, r.fail("embedding", err)
		}
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(f[:]))
	}
	return vec, nil
}

func (r *wireReader) Float32() (float32, error) {
	var f [4]byte
	if _, err := io.ReadFull(r.r, f[:]); err != nil {
		return 0, r.fail("float32", err)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(f[:])), nil
}

func (r *wireReader) StringMap() (domain.StringMap, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	m := make(domain.StringMap, n)
	for i := uint16(0); i < n; i++ {
		k, err := r.String()
		if err != nil {
			return nil, err
		}
		v, err := r.String()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func (r *wireReader) Edges() ([]domain.ParentEdge, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	edges := make([]domain.ParentEdge, n)
	for i := range edges {
		if edges[i].AssetID, err = r.String(); err != nil {
			return nil, err
		}
		if edges[i].TransformName, err = r.String(); err != nil {
			return nil, err
		}
		if edges[i].TransformDigest, err = r.String(); err != nil {
			return nil, err
		}
	}
	return edges, nil
}

func (r *wireReader) StringList() ([]string, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	list := make([]string, n)
	for i := range list {
		if list[i], err = r.String(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Remaining reports unconsumed payload bytes
func (r *wireReader) Remaining() int {
	return r.r.Len()
}
