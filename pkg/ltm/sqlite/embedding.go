package sqlite

import (
	"encoding/binary"
	"math"
)

// serializeEmbedding converts a float32 slice to a little-endian BLOB,
// the same layout sqlite-vec uses.
func serializeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeEmbedding converts a little-endian BLOB back to float32s.
// Malformed blobs yield nil rather than an error; a broken embedding
// just means the record drops out of vector search.
func deserializeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
