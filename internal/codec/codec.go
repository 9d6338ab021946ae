// Package codec handles the on-disk byte encoding for vectors, sparse
// vectors, and metadata, shared by the store and index persistence paths.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// EncodeVector converts a dense float32 vector into its little-endian wire
// form: a 4-byte length prefix followed by the raw float32 values.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, fmt.Errorf("codec: nil vector")
	}
	if len(vector) > math.MaxInt32 {
		return nil, fmt.Errorf("codec: vector too large: %d elements", len(vector))
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 + len(vector)*4)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("codec: encode vector length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("codec: encode vector values: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeVector reverses EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: vector payload too short")
	}
	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("codec: decode vector length: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("codec: negative vector length")
	}
	if length == 0 {
		return []float32{}, nil
	}
	if buf.Len() < int(length)*4 {
		return nil, fmt.Errorf("codec: vector payload truncated")
	}

	vector := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("codec: decode vector values: %w", err)
	}
	return vector, nil
}

// EncodeSparse serializes a sparse vector (dimension index -> weight) as a
// JSON object keyed by the string form of the index, sorted by Go's stable
// map marshaling so repeated encodes of an unchanged map are byte-identical.
func EncodeSparse(sparse map[uint32]float32) ([]byte, error) {
	if sparse == nil {
		return nil, nil
	}
	asString := make(map[string]float32, len(sparse))
	for k, v := range sparse {
		asString[fmt.Sprintf("%d", k)] = v
	}
	data, err := json.Marshal(asString)
	if err != nil {
		return nil, fmt.Errorf("codec: encode sparse vector: %w", err)
	}
	return data, nil
}

// DecodeSparse reverses EncodeSparse.
func DecodeSparse(data []byte) (map[uint32]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var asString map[string]float32
	if err := json.Unmarshal(data, &asString); err != nil {
		return nil, fmt.Errorf("codec: decode sparse vector: %w", err)
	}
	out := make(map[uint32]float32, len(asString))
	for k, v := range asString {
		var idx uint32
		if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
			return nil, fmt.Errorf("codec: decode sparse key %q: %w", k, err)
		}
		out[idx] = v
	}
	return out, nil
}

// EncodeMetadata marshals a scalar-field map to its JSON storage form.
func EncodeMetadata(fields map[string]any) (string, error) {
	if fields == nil {
		return "", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("codec: encode metadata: %w", err)
	}
	return string(data), nil
}

// DecodeMetadata reverses EncodeMetadata.
func DecodeMetadata(jsonStr string) (map[string]any, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return nil, fmt.Errorf("codec: decode metadata: %w", err)
	}
	return fields, nil
}

// ValidateVector rejects nil, empty, NaN, or infinite vectors before they
// reach the store or an index.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("codec: vector is empty")
	}
	for i, val := range vector {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("codec: vector value at index %d is not finite", i)
		}
	}
	return nil
}
