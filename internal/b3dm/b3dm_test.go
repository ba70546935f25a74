package b3dm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHeaderLayout(t *testing.T) {
	glb := []byte("glTF-payload-bytes")
	data, err := Wrap(glb)
	require.NoError(t, err)

	assert.Equal(t, "b3dm", string(data[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(data[8:]))

	h, err := ParseHeader(data)
	require.NoError(t, err)
	total := HeaderSize + int(h.FeatureTableJSONLength) + int(h.FeatureTableBinaryLength) +
		int(h.BatchTableJSONLength) + int(h.BatchTableBinaryLength) + len(glb)
	assert.Equal(t, int(h.ByteLength), total)
	assert.Equal(t, uint32(0), h.FeatureTableBinaryLength)
	assert.Equal(t, uint32(0), h.BatchTableBinaryLength)
}

func TestWrapAlignmentRules(t *testing.T) {
	for _, glbLen := range []int{0, 1, 7, 8, 100} {
		data, err := Wrap(make([]byte, glbLen))
		require.NoError(t, err)
		h, err := ParseHeader(data)
		require.NoError(t, err)

		assert.Equal(t, 0, (HeaderSize+int(h.FeatureTableJSONLength))%8)
		assert.Equal(t, 0, int(h.BatchTableJSONLength)%8)
	}
}

func TestWrapTables(t *testing.T) {
	data, err := Wrap([]byte("x"))
	require.NoError(t, err)
	h, err := ParseHeader(data)
	require.NoError(t, err)

	ft := string(data[HeaderSize : HeaderSize+int(h.FeatureTableJSONLength)])
	assert.Contains(t, ft, `"BATCH_LENGTH":1`)

	btStart := HeaderSize + int(h.FeatureTableJSONLength)
	bt := string(data[btStart : btStart+int(h.BatchTableJSONLength)])
	assert.Contains(t, bt, `"batchId":[0]`)
	assert.Contains(t, bt, `"name":["mesh_0"]`)
}

func TestGlbRoundTrip(t *testing.T) {
	glb := []byte{0x67, 0x6c, 0x54, 0x46, 1, 2, 3}
	data, err := Wrap(glb)
	require.NoError(t, err)

	out, err := Glb(data)
	require.NoError(t, err)
	assert.Equal(t, glb, out)
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	data, err := Wrap([]byte("x"))
	require.NoError(t, err)
	data[0] = 'x'
	_, err = ParseHeader(data)
	assert.Error(t, err)
}

func TestParseHeaderRejectsShortInput(t *testing.T) {
	_, err := ParseHeader([]byte("b3dm"))
	assert.Error(t, err)
}
