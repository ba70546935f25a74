// Package b3dm frames a GLB payload as a Batched 3D Model tile: a 28-byte
// header, space-padded feature and batch table JSON, then the GLB bytes.
package b3dm

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	Magic      = "b3dm"
	Version    = 1
	HeaderSize = 28
)

// batchTable carries one entry per batched mesh.
type batchTable struct {
	BatchID []int    `json:"batchId"`
	Name    []string `json:"name"`
}

// featureTableJSON returns {"BATCH_LENGTH":n} padded with spaces so that the
// header plus feature table length is a multiple of 8.
func featureTableJSON(batchLength int) string {
	s := fmt.Sprintf("{\"BATCH_LENGTH\":%d}", batchLength)
	for (HeaderSize+len(s))%8 != 0 {
		s += " "
	}
	return s
}

// batchTableJSON returns the batch table padded to a multiple of 8.
func batchTableJSON(meshCount int) (string, error) {
	bt := batchTable{BatchID: make([]int, meshCount), Name: make([]string, meshCount)}
	for i := 0; i < meshCount; i++ {
		bt.BatchID[i] = i
		bt.Name[i] = fmt.Sprintf("mesh_%d", i)
	}
	data, err := json.Marshal(bt)
	if err != nil {
		return "", err
	}
	s := string(data)
	if pad := len(s) % 8; pad != 0 {
		s += strings.Repeat(" ", 8-pad)
	}
	return s, nil
}

// Wrap frames glb as a single-batch B3DM tile.
func Wrap(glb []byte) ([]byte, error) {
	return WrapBatched(glb, 1)
}

// WrapBatched frames glb with meshCount batch entries.
func WrapBatched(glb []byte, meshCount int) ([]byte, error) {
	ft := featureTableJSON(meshCount)
	bt, err := batchTableJSON(meshCount)
	if err != nil {
		return nil, err
	}

	total := HeaderSize + len(ft) + len(bt) + len(glb)
	out := make([]byte, 0, total)
	out = append(out, Magic...)
	out = appendUint32(out, Version)
	out = appendUint32(out, uint32(total))
	out = appendUint32(out, uint32(len(ft)))
	out = appendUint32(out, 0) // feature table binary
	out = appendUint32(out, uint32(len(bt)))
	out = appendUint32(out, 0) // batch table binary
	out = append(out, ft...)
	out = append(out, bt...)
	out = append(out, glb...)
	return out, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	return append(buf, scratch[:]...)
}

// Header is the decoded fixed-size prefix of a B3DM tile.
type Header struct {
	Magic                    string
	Version                  uint32
	ByteLength               uint32
	FeatureTableJSONLength   uint32
	FeatureTableBinaryLength uint32
	BatchTableJSONLength     uint32
	BatchTableBinaryLength   uint32
}

// ParseHeader decodes and validates the 28-byte header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("b3dm too short: %d bytes", len(data))
	}
	h := Header{
		Magic:                    string(data[0:4]),
		Version:                  binary.LittleEndian.Uint32(data[4:]),
		ByteLength:               binary.LittleEndian.Uint32(data[8:]),
		FeatureTableJSONLength:   binary.LittleEndian.Uint32(data[12:]),
		FeatureTableBinaryLength: binary.LittleEndian.Uint32(data[16:]),
		BatchTableJSONLength:     binary.LittleEndian.Uint32(data[20:]),
		BatchTableBinaryLength:   binary.LittleEndian.Uint32(data[24:]),
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("bad b3dm magic %q", h.Magic)
	}
	if h.Version != Version {
		return h, fmt.Errorf("unsupported b3dm version %d", h.Version)
	}
	return h, nil
}

// Glb returns the embedded GLB payload of a B3DM tile.
func Glb(data []byte) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	start := HeaderSize + int(h.FeatureTableJSONLength) + int(h.FeatureTableBinaryLength) +
		int(h.BatchTableJSONLength) + int(h.BatchTableBinaryLength)
	if start > len(data) {
		return nil, fmt.Errorf("b3dm tables exceed payload")
	}
	return data[start:], nil
}
