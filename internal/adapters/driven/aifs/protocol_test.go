package aifs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := frame{Op: opVectorSearch, Status: statusOK, Payload: []byte("payload")}
	if err := writeFrame(&buf, in); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	out, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if out.Op != in.Op || out.Status != in.Status {
		t.Errorf("header mismatch: got op=0x%02x status=0x%02x", out.Op, out.Status)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload mismatch: %q", out.Payload)
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{opPing, statusOK, 0xFF, 0xFF, 0xFF, 0xFF})

	_, err := readFrame(&buf)
	if !errors.Is(err, domain.ErrStoreProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestWirePrimitivesRoundTrip(t *testing.T) {
	var w wireWriter
	w.Byte(0x7F)
	w.Uint32(123456)
	w.Uint64(1 << 40)
	w.String("hello")
	w.Blob([]byte{1, 2, 3})

	r := newWireReader(w.Bytes())

	if b, err := r.Byte(); err != nil || b != 0x7F {
		t.Errorf("Byte: got %v, %v", b, err)
	}
	if v, err := r.Uint32(); err != nil || v != 123456 {
		t.Errorf("Uint32: got %v, %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 1<<40 {
		t.Errorf("Uint64: got %v, %v", v, err)
	}
	if s, err := r.String(); err != nil || s != "hello" {
		t.Errorf("String: got %q, %v", s, err)
	}
	if b, err := r.Blob(); err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("Blob: got %v, %v", b, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("expected empty reader, %d bytes left", r.Remaining())
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}

	var w wireWriter
	w.Embedding(vec)

	// Packed width is dimension * 4 bytes plus the u16 count
	if got := len(w.Bytes()); got != 2+4*len(vec) {
		t.Errorf("expected packed size %d, got %d", 2+4*len(vec), got)
	}

	out, err := newWireReader(w.Bytes()).Embedding()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != len(vec) {
		t.Fatalf("expected %d values, got %d", len(vec), len(out))
	}
	for i := range vec {
		if out[i] != vec[i] {
			t.Errorf("value %d: got %f, want %f", i, out[i], vec[i])
		}
	}
}

func TestStringMapRoundTrip(t *testing.T) {
	m := domain.StringMap{"b": "2", "a": "1", "c": "3"}

	var w wireWriter
	w.StringMap(m)

	out, err := newWireReader(w.Bytes()).StringMap()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != len(m) {
		t.Fatalf("expected %d pairs, got %d", len(m), len(out))
	}
	for k, v := range m {
		if out[k] != v {
			t.Errorf("key %s: got %q, want %q", k, out[k], v)
		}
	}

	// Sorted key order makes encoding deterministic
	var w2 wireWriter
	w2.StringMap(domain.StringMap{"c": "3", "a": "1", "b": "2"})
	if !bytes.Equal(w.Bytes(), w2.Bytes()) {
		t.Error("expected deterministic encoding regardless of map order")
	}
}

func TestEdgesRoundTrip(t *testing.T) {
	edges := []domain.ParentEdge{
		{AssetID: "parent-1", TransformName: "chunker", TransformDigest: "abc123"},
		{AssetID: "parent-2"},
	}

	var w wireWriter
	w.Edges(edges)

	out, err := newWireReader(w.Bytes()).Edges()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(out))
	}
	if out[0] != edges[0] || out[1] != edges[1] {
		t.Errorf("edge mismatch: %+v", out)
	}
}

func TestKindCodec(t *testing.T) {
	kinds := []domain.RemoteKind{
		domain.RemoteKindBlob,
		domain.RemoteKindTensor,
		domain.RemoteKindEmbed,
		domain.RemoteKindArtifact,
	}
	for _, k := range kinds {
		b, err := encodeKind(k)
		if err != nil {
			t.Fatalf("encode %s: %v", k, err)
		}
		back, err := decodeKind(b)
		if err != nil {
			t.Fatalf("decode %s: %v", k, err)
		}
		if back != k {
			t.Errorf("round trip: got %s, want %s", back, k)
		}
	}

	if _, err := encodeKind(domain.RemoteKind("bogus")); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := decodeKind(0x42); !errors.Is(err, domain.ErrStoreProtocol) {
		t.Errorf("expected protocol error for unknown kind byte, got %v", err)
	}
}

func TestWireReaderTruncated(t *testing.T) {
	var w wireWriter
	w.String("truncate me")
	payload := w.Bytes()

	_, err := newWireReader(payload[:3]).String()
	if !errors.Is(err, domain.ErrStoreProtocol) {
		t.Errorf("expected protocol error on truncated string, got %v", err)
	}

	// Blob claiming more bytes than the payload holds
	var wb wireWriter
	wb.Uint32(1000)
	_, err = newWireReader(wb.Bytes()).Blob()
	if !errors.Is(err, domain.ErrStoreProtocol) {
		t.Errorf("expected protocol error on overlong blob, got %v", err)
	}
}
