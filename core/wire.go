package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4"
)

// encodeWireBlob wraps a gob-encoded accumulator snapshot for transport: it
// lz4-compresses the payload, grounded on the teacher's
// LZ4PartitionSerializer (internal/partition/lz4_partition_compressor.go),
// here shrinking accumulator snapshots instead of dataframe partitions, and
// prefixes an xxhash checksum of the uncompressed bytes so load can detect a
// corrupted or truncated wire transfer rather than silently gob-decoding
// garbage. xxhash is grounded on the teacher's partition keying
// (core/partition.go, internal/partition/partition-keyable.go), repurposed
// here as a wire integrity check instead of a partition key.
func encodeWireBlob(plain []byte) ([]byte, error) {
	sum := xxhash.Sum64(plain)

	compressed := new(bytes.Buffer)
	w := lz4.NewWriter(compressed)
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}

	out := make([]byte, 8+compressed.Len())
	binary.BigEndian.PutUint64(out[:8], sum)
	copy(out[8:], compressed.Bytes())
	return out, nil
}

// decodeWireBlob reverses encodeWireBlob and verifies the checksum before
// returning the plain gob bytes.
func decodeWireBlob(blob []byte) ([]byte, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("wire blob too short: %d bytes", len(blob))
	}
	wantSum := binary.BigEndian.Uint64(blob[:8])

	r := lz4.NewReader(bytes.NewReader(blob[8:]))
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}

	if gotSum := xxhash.Sum64(plain); gotSum != wantSum {
		return nil, fmt.Errorf("snapshot checksum mismatch: wire transfer corrupted")
	}
	return plain, nil
}
