package osg

// Visitor receives one Apply call per node kind. Implementations decide where
// traversal continues by calling the node's Traverse method with themselves,
// which keeps transform-stack push/pop explicit at the call sites.
type Visitor interface {
	ApplyGroup(g *Group)
	ApplyMatrixTransform(m *MatrixTransform)
	ApplyPagedLOD(p *PagedLOD)
	ApplyGeometry(g *Geometry)
}
