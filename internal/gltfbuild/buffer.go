package gltfbuild

import (
	"encoding/binary"
	"math"

	vec2 "github.com/flywave/go3d/float64/vec2"
	vec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
)

// buildState tracks the single shared buffer, the active draw range and the
// file-wide position bounds while primitives are appended to the document.
type buildState struct {
	doc *gltf.Document

	// Active DrawArrays range; drawFirst is -1 when no range applies.
	drawFirst int
	drawCount int

	bbox geometry.TileBox
}

func newBuildState() *buildState {
	doc := gltf.NewDocument()
	doc.Buffers = []*gltf.Buffer{{}}
	return &buildState{doc: doc, drawFirst: -1}
}

func (s *buildState) buffer() *gltf.Buffer { return s.doc.Buffers[0] }

// appendBytes appends raw bytes and pads the buffer to a 4-byte boundary,
// returning the byte offset the data starts at.
func (s *buildState) appendBytes(data []byte) (offset, length uint32) {
	buf := s.buffer()
	offset = uint32(len(buf.Data))
	buf.Data = append(buf.Data, data...)
	length = uint32(len(buf.Data)) - offset
	for len(buf.Data)%4 != 0 {
		buf.Data = append(buf.Data, 0)
	}
	buf.ByteLength = uint32(len(buf.Data))
	return offset, length
}

func (s *buildState) addBufferView(offset, length uint32, target gltf.Target) uint32 {
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: length,
	}
	if target != 0 {
		view.Target = target
	}
	s.doc.BufferViews = append(s.doc.BufferViews, view)
	return uint32(len(s.doc.BufferViews) - 1)
}

func (s *buildState) addAccessor(acc *gltf.Accessor) uint32 {
	s.doc.Accessors = append(s.doc.Accessors, acc)
	return uint32(len(s.doc.Accessors) - 1)
}

// attributeRange resolves the active draw range against an attribute array.
func (s *buildState) attributeRange(length int) (start, end int) {
	if s.drawFirst >= 0 {
		start = s.drawFirst
		end = s.drawFirst + s.drawCount
		if end > length {
			end = length
		}
		return start, end
	}
	return 0, length
}

// emitVec3 writes a float32 VEC3 accessor for the array (or the active draw
// range of it). Position accessors additionally feed the file bbox.
func (s *buildState) emitVec3(arr []vec3.T, isPosition bool) uint32 {
	start, end := s.attributeRange(len(arr))

	max := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	min := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}

	data := make([]byte, 0, (end-start)*12)
	var scratch [12]byte
	for i := start; i < end; i++ {
		x := float32(arr[i][0])
		y := float32(arr[i][1])
		z := float32(arr[i][2])
		binary.LittleEndian.PutUint32(scratch[0:], math.Float32bits(x))
		binary.LittleEndian.PutUint32(scratch[4:], math.Float32bits(y))
		binary.LittleEndian.PutUint32(scratch[8:], math.Float32bits(z))
		data = append(data, scratch[:]...)
		for a, v := range [3]float32{x, y, z} {
			if v > max[a] {
				max[a] = v
			}
			if v < min[a] {
				min[a] = v
			}
		}
	}

	offset, length := s.appendBytes(data)
	view := s.addBufferView(offset, length, gltf.TargetArrayBuffer)

	acc := &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(end - start),
		Max:           []float32{max[0], max[1], max[2]},
		Min:           []float32{min[0], min[1], min[2]},
	}
	if isPosition && end > start {
		s.bbox.ExpandPoint(vec3.T{float64(min[0]), float64(min[1]), float64(min[2])})
		s.bbox.ExpandPoint(vec3.T{float64(max[0]), float64(max[1]), float64(max[2])})
	}
	return s.addAccessor(acc)
}

// emitVec2 writes a float32 VEC2 accessor for the array (or the active draw
// range of it).
func (s *buildState) emitVec2(arr []vec2.T) uint32 {
	start, end := s.attributeRange(len(arr))

	max := [2]float32{-math.MaxFloat32, -math.MaxFloat32}
	min := [2]float32{math.MaxFloat32, math.MaxFloat32}

	data := make([]byte, 0, (end-start)*8)
	var scratch [8]byte
	for i := start; i < end; i++ {
		u := float32(arr[i][0])
		v := float32(arr[i][1])
		binary.LittleEndian.PutUint32(scratch[0:], math.Float32bits(u))
		binary.LittleEndian.PutUint32(scratch[4:], math.Float32bits(v))
		data = append(data, scratch[:]...)
		for a, val := range [2]float32{u, v} {
			if val > max[a] {
				max[a] = val
			}
			if val < min[a] {
				min[a] = val
			}
		}
	}

	offset, length := s.appendBytes(data)
	view := s.addBufferView(offset, length, gltf.TargetArrayBuffer)
	return s.addAccessor(&gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec2,
		Count:         uint32(end - start),
		Max:           []float32{max[0], max[1]},
		Min:           []float32{min[0], min[1]},
	})
}

// indexComponentType picks the narrowest storage for the maximum index value.
// A maximum of exactly 65535 must widen to UINT because 65535 is the USHORT
// restart sentinel; the same widening applies at 255 for UBYTE.
func indexComponentType(max uint32) gltf.ComponentType {
	switch {
	case max < 255:
		return gltf.ComponentUbyte
	case max < 65535:
		return gltf.ComponentUshort
	default:
		return gltf.ComponentUint
	}
}

// emitIndices writes a scalar index accessor backed by an element array view.
func (s *buildState) emitIndices(indices []uint32) uint32 {
	var maxIdx uint32
	minIdx := uint32(math.MaxUint32)
	for _, idx := range indices {
		if idx > maxIdx {
			maxIdx = idx
		}
		if idx < minIdx {
			minIdx = idx
		}
	}
	if len(indices) == 0 {
		minIdx = 0
	}

	componentType := indexComponentType(maxIdx)
	var data []byte
	switch componentType {
	case gltf.ComponentUbyte:
		data = make([]byte, len(indices))
		for i, idx := range indices {
			data[i] = byte(idx)
		}
	case gltf.ComponentUshort:
		data = make([]byte, len(indices)*2)
		for i, idx := range indices {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(idx))
		}
	default:
		data = make([]byte, len(indices)*4)
		for i, idx := range indices {
			binary.LittleEndian.PutUint32(data[i*4:], idx)
		}
	}

	offset, length := s.appendBytes(data)
	view := s.addBufferView(offset, length, gltf.TargetElementArrayBuffer)
	return s.addAccessor(&gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: componentType,
		Type:          gltf.AccessorScalar,
		Count:         uint32(len(indices)),
		Max:           []float32{float32(maxIdx)},
		Min:           []float32{float32(minIdx)},
	})
}
