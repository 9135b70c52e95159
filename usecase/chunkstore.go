package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

const (
	metaSuffix  = "_meta"
	chunkFormat = "%s_chunk_%d"

	// invalidateSweepBound caps the chunk keys Invalidate probes when the
	// meta record is gone (the backend has no prefix-delete).
	invalidateSweepBound = 64
)

// ChunkMeta is the metadata record written next to the chunks.
type ChunkMeta struct {
	ChunkCount     int       `json:"chunk_count"`
	OriginalSize   int       `json:"original_size"`
	CompressedSize int       `json:"compressed_size"`
	ItemCount      int       `json:"item_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// CompressedChunkStore persists values too large for a single backend entry:
// serialize, compress, base64-encode, then split into bounded chunks stored
// under sibling keys. Reads reverse the pipeline and treat every corruption
// as a cache miss, never an error.
type CompressedChunkStore struct {
	backend      kvstore.Store
	maxChunkSize int
}

func NewCompressedChunkStore(backend kvstore.Store, maxChunkSize int) *CompressedChunkStore {
	if maxChunkSize <= 0 || maxChunkSize > backend.MaxValueSize() {
		maxChunkSize = backend.MaxValueSize() * 9 / 10
	}
	return &CompressedChunkStore{backend: backend, maxChunkSize: maxChunkSize}
}

// compressToText gzips data and encodes it as a text-safe string.
func compressToText(data []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressFromText reverses compressToText.
func decompressFromText(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func metaKey(baseKey string) string {
	return baseKey + metaSuffix
}

func chunkKey(baseKey string, i int) string {
	return fmt.Sprintf(chunkFormat, baseKey, i)
}

func itemCount(value interface{}) int {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len()
	default:
		return 1
	}
}

// Put stores value under baseKey. A false return means "operate without
// cache": the value could not be stored, nothing more. It is never fatal.
func (s *CompressedChunkStore) Put(ctx context.Context, baseKey string, value interface{}, ttl time.Duration) bool {
	serialized, err := json.Marshal(value)
	if err != nil {
		logrus.Warnf("[Chunks] %s: serialize failed: %v", baseKey, err)
		return false
	}

	encoded, err := compressToText(serialized)
	if err != nil {
		logrus.Warnf("[Chunks] %s: compress failed: %v", baseKey, err)
		return false
	}

	chunkCount := (len(encoded) + s.maxChunkSize - 1) / s.maxChunkSize
	if chunkCount == 0 {
		chunkCount = 1
	}

	meta := ChunkMeta{
		ChunkCount:     chunkCount,
		OriginalSize:   len(serialized),
		CompressedSize: len(encoded),
		ItemCount:      itemCount(value),
		CreatedAt:      time.Now().UTC(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false
	}

	for i := 0; i < chunkCount; i++ {
		start := i * s.maxChunkSize
		end := start + s.maxChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		if err := s.backend.Set(ctx, chunkKey(baseKey, i), encoded[start:end], ttl); err != nil {
			logrus.Warnf("[Chunks] %s: chunk %d/%d write failed: %v", baseKey, i, chunkCount, err)
			return false
		}
	}

	// Meta last: a crash mid-write leaves chunks without meta, which reads
	// handle as a plain miss.
	if err := s.backend.Set(ctx, metaKey(baseKey), string(metaJSON), ttl); err != nil {
		logrus.Warnf("[Chunks] %s: meta write failed: %v", baseKey, err)
		return false
	}

	logrus.Debugf("[Chunks] %s: stored %d items in %d chunks (%d -> %d bytes)",
		baseKey, meta.ItemCount, chunkCount, meta.OriginalSize, meta.CompressedSize)
	return true
}

// Get reassembles the value stored under baseKey. Returns (nil, false) on any
// missing chunk, size mismatch, or decode failure: a partially written or
// corrupt payload is indistinguishable from a miss by design.
func (s *CompressedChunkStore) Get(ctx context.Context, baseKey string) (interface{}, bool) {
	metaJSON, ok, err := s.backend.Get(ctx, metaKey(baseKey))
	if err != nil || !ok {
		return nil, false
	}

	var meta ChunkMeta
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		logrus.Debugf("[Chunks] %s: meta decode failed: %v", baseKey, err)
		return nil, false
	}
	if meta.ChunkCount <= 0 {
		return nil, false
	}

	var encoded bytes.Buffer
	encoded.Grow(meta.CompressedSize)
	for i := 0; i < meta.ChunkCount; i++ {
		chunk, ok, err := s.backend.Get(ctx, chunkKey(baseKey, i))
		if err != nil || !ok {
			logrus.Debugf("[Chunks] %s: chunk %d/%d missing, treating as miss", baseKey, i, meta.ChunkCount)
			return nil, false
		}
		encoded.WriteString(chunk)
	}

	if encoded.Len() != meta.CompressedSize {
		logrus.Debugf("[Chunks] %s: size mismatch (%d != %d), treating as miss", baseKey, encoded.Len(), meta.CompressedSize)
		return nil, false
	}

	serialized, err := decompressFromText(encoded.String())
	if err != nil {
		logrus.Debugf("[Chunks] %s: decompress failed: %v", baseKey, err)
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal(serialized, &value); err != nil {
		logrus.Debugf("[Chunks] %s: deserialize failed: %v", baseKey, err)
		return nil, false
	}
	return value, true
}

// GetMeta returns the metadata record without reading the chunks.
func (s *CompressedChunkStore) GetMeta(ctx context.Context, baseKey string) (ChunkMeta, bool) {
	metaJSON, ok, err := s.backend.Get(ctx, metaKey(baseKey))
	if err != nil || !ok {
		return ChunkMeta{}, false
	}
	var meta ChunkMeta
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return ChunkMeta{}, false
	}
	return meta, true
}

// Invalidate deletes the meta record and a bounded number of chunk keys.
// Deleting keys that do not exist is a no-op.
func (s *CompressedChunkStore) Invalidate(ctx context.Context, baseKey string) {
	sweep := invalidateSweepBound
	if meta, ok := s.GetMeta(ctx, baseKey); ok && meta.ChunkCount > sweep {
		sweep = meta.ChunkCount
	}

	_ = s.backend.Delete(ctx, metaKey(baseKey))
	for i := 0; i < sweep; i++ {
		_ = s.backend.Delete(ctx, chunkKey(baseKey, i))
	}
}

// MaxChunkSize reports the configured per-chunk ceiling.
func (s *CompressedChunkStore) MaxChunkSize() int {
	return s.maxChunkSize
}
