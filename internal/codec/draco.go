package codec

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// DracoMesh is the attribute soup handed to the Draco encoder: parallel
// per-vertex streams plus a plain triangle index list. Normals and texture
// coordinates participate only when their length matches the position count.
type DracoMesh struct {
	// XYZ triplets.
	Positions []float32
	// XYZ triplets, optional.
	Normals []float32
	// UV pairs, optional.
	TexCoords []float32
	// Per-vertex batch ids, optional.
	BatchIDs []uint32
	// Triangle list; callers triangulate strips/fans/quads beforehand.
	Indices []uint32
}

func (m *DracoMesh) VertexCount() int { return len(m.Positions) / 3 }

func (m *DracoMesh) hasNormals() bool {
	return len(m.Normals) == len(m.Positions) && len(m.Normals) > 0
}

func (m *DracoMesh) hasTexCoords() bool {
	return len(m.TexCoords)/2 == m.VertexCount() && len(m.TexCoords) > 0
}

// DracoAttributeIDs are the attribute ids inside the compressed blob, as the
// KHR_draco_mesh_compression extension needs them. -1 marks an absent stream.
type DracoAttributeIDs struct {
	Position int
	Normal   int
	TexCoord int
	BatchID  int
}

// DracoParams sets the quantization bits per stream. Zero values fall back to
// the defaults 11/10/12; out-of-range values are clamped (10-16 for
// positions, 8-16 for the others).
type DracoParams struct {
	PositionBits int
	NormalBits   int
	TexCoordBits int
}

func (p DracoParams) normalized() DracoParams {
	out := p
	if out.PositionBits == 0 {
		out.PositionBits = 11
	}
	if out.NormalBits == 0 {
		out.NormalBits = 10
	}
	if out.TexCoordBits == 0 {
		out.TexCoordBits = 12
	}
	out.PositionBits = clamp(out.PositionBits, 10, 16)
	out.NormalBits = clamp(out.NormalBits, 8, 16)
	out.TexCoordBits = clamp(out.TexCoordBits, 8, 16)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DracoEncoder compresses a triangle mesh and reports the attribute id
// mapping of the emitted blob.
type DracoEncoder interface {
	EncodeMesh(m *DracoMesh, params DracoParams) ([]byte, DracoAttributeIDs, error)
}

// DracoCliEncoder shells out to the stock draco_encoder executable through a
// temporary OBJ file. The OBJ importer adds attributes in a fixed order, so
// the blob's attribute ids are position, then texcoord, then normal, in
// presence order.
type DracoCliEncoder struct {
	// Path of the draco_encoder executable; looked up on PATH when empty.
	Path string

	initOnce sync.Once
	initErr  error
	resolved string
}

func (e *DracoCliEncoder) init() {
	e.initOnce.Do(func() {
		candidate := e.Path
		if candidate == "" {
			candidate = "draco_encoder"
		}
		e.resolved, e.initErr = exec.LookPath(candidate)
	})
}

func (e *DracoCliEncoder) EncodeMesh(m *DracoMesh, params DracoParams) ([]byte, DracoAttributeIDs, error) {
	ids := DracoAttributeIDs{Position: -1, Normal: -1, TexCoord: -1, BatchID: -1}

	e.init()
	if e.initErr != nil {
		return nil, ids, fmt.Errorf("draco encoder unavailable: %w", e.initErr)
	}
	if m.VertexCount() == 0 || len(m.Indices) < 3 {
		return nil, ids, fmt.Errorf("empty mesh")
	}

	dir, err := os.MkdirTemp("", "draco")
	if err != nil {
		return nil, ids, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "mesh.obj")
	out := filepath.Join(dir, "mesh.drc")
	if err := writeObj(in, m); err != nil {
		return nil, ids, err
	}

	p := params.normalized()
	cmd := exec.Command(e.resolved,
		"-i", in,
		"-o", out,
		"-qp", fmt.Sprint(p.PositionBits),
		"-qt", fmt.Sprint(p.TexCoordBits),
		"-qn", fmt.Sprint(p.NormalBits),
		"-cl", "7",
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, ids, fmt.Errorf("draco_encoder failed: %v: %s", err, output)
	}

	blob, err := os.ReadFile(out)
	if err != nil {
		return nil, ids, err
	}

	next := 0
	ids.Position = next
	next++
	if m.hasTexCoords() {
		ids.TexCoord = next
		next++
	}
	if m.hasNormals() {
		ids.Normal = next
	}
	return blob, ids, nil
}

func writeObj(path string, m *DracoMesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	count := m.VertexCount()
	hasUV := m.hasTexCoords()
	hasN := m.hasNormals()

	for i := 0; i < count; i++ {
		fmt.Fprintf(w, "v %g %g %g\n", m.Positions[i*3], m.Positions[i*3+1], m.Positions[i*3+2])
	}
	if hasUV {
		for i := 0; i < count; i++ {
			fmt.Fprintf(w, "vt %g %g\n", m.TexCoords[i*2], m.TexCoords[i*2+1])
		}
	}
	if hasN {
		for i := 0; i < count; i++ {
			fmt.Fprintf(w, "vn %g %g %g\n", m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2])
		}
	}

	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1
		switch {
		case hasUV && hasN:
			fmt.Fprintf(w, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		case hasUV:
			fmt.Fprintf(w, "f %d/%d %d/%d %d/%d\n", a, a, b, b, c, c)
		case hasN:
			fmt.Fprintf(w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
		default:
			fmt.Fprintf(w, "f %d %d %d\n", a, b, c)
		}
	}
	return w.Flush()
}
