// Package osg holds the in-memory scene-graph model produced by the external
// OSGB decoder. The decoder itself is behind the Loader interface; everything
// in this package only describes the node tree and how to traverse it.
package osg

import (
	mat4 "github.com/flywave/go3d/float64/mat4"
	vec2 "github.com/flywave/go3d/float64/vec2"
	vec3 "github.com/flywave/go3d/float64/vec3"
)

// Node is implemented by every scene-graph node kind. Accept dispatches to the
// matching Visitor method; the visitor decides whether to keep traversing by
// calling Traverse.
type Node interface {
	Accept(v Visitor)
}

// Group is an interior node with an ordered child list.
type Group struct {
	Children []Node
}

func (g *Group) Accept(v Visitor) { v.ApplyGroup(g) }

// Traverse visits every direct child.
func (g *Group) Traverse(v Visitor) {
	for _, c := range g.Children {
		c.Accept(v)
	}
}

// MatrixTransform multiplies its matrix into the accumulated model transform
// for the duration of its subtree.
type MatrixTransform struct {
	Group
	Matrix mat4.T
}

func (m *MatrixTransform) Accept(v Visitor) { v.ApplyMatrixTransform(m) }

// PagedLOD references child content by relative file path. FileNames[0] is by
// convention the coarse in-file payload name (often empty); entries from index
// 1 on are the finer external files, matching the decoder's layout.
type PagedLOD struct {
	Group
	DatabasePath string
	FileNames    []string
}

func (p *PagedLOD) Accept(v Visitor) { v.ApplyPagedLOD(p) }

// NormalBinding describes how a drawable's normal array maps onto vertices.
type NormalBinding int

const (
	BindOff NormalBinding = iota
	BindPerVertex
	BindOverall
	BindPerPrimitiveSet
)

// Geometry is a drawable: flat vertex attribute arrays plus primitive sets and
// an optional state set.
type Geometry struct {
	Vertices      []vec3.T
	Normals       []vec3.T
	NormalBinding NormalBinding
	TexCoords     []vec2.T
	PrimitiveSets []PrimitiveSet
	States        *StateSet
}

func (g *Geometry) Accept(v Visitor) { v.ApplyGeometry(g) }

// StateSet carries the two attributes the pipeline extracts: texture unit 0
// and the material.
type StateSet struct {
	Texture  *Texture
	Material *Material
}
