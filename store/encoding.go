package store

import (
	"encoding/binary"
	"math"

	"github.com/vinayprograms/skillmatch/errors"
)

// encodeVector packs vec as little-endian float32 values. The length is
// implied by the BLOB size.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// decodeVector reverses encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Corruption("embedding blob length is not a multiple of 4",
			errors.WithMetadata("length", itoa(len(b))))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
