package imglib

// Vertex is a point in 3-D space.
type Vertex [3]float32

// Triangle is one face of a mesh.
type Triangle struct {
	V0, V1, V2 Vertex
}

// Mesh is a triangle mesh.
type Mesh interface {
	// Triangles returns the mesh faces in iteration order.
	Triangles() []Triangle
}

// TriMesh is an indexed triangle mesh: faces reference shared vertices.
type TriMesh struct {
	vertices []Vertex
	faces    [][3]int
}

// NewTriMesh creates an empty mesh.
func NewTriMesh() *TriMesh {
	return &TriMesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *TriMesh) AddVertex(x, y, z float32) int {
	m.vertices = append(m.vertices, Vertex{x, y, z})
	return len(m.vertices) - 1
}

// AddFace appends a face over three existing vertex indices.
func (m *TriMesh) AddFace(a, b, c int) {
	m.faces = append(m.faces, [3]int{a, b, c})
}

// AddTriangle appends three new vertices and the face joining them.
func (m *TriMesh) AddTriangle(v0, v1, v2 Vertex) {
	a := m.AddVertex(v0[0], v0[1], v0[2])
	b := m.AddVertex(v1[0], v1[1], v1[2])
	c := m.AddVertex(v2[0], v2[1], v2[2])
	m.AddFace(a, b, c)
}

// Len returns the number of faces.
func (m *TriMesh) Len() int {
	return len(m.faces)
}

// Triangles implements Mesh.
func (m *TriMesh) Triangles() []Triangle {
	out := make([]Triangle, len(m.faces))
	for i, f := range m.faces {
		out[i] = Triangle{
			V0: m.vertices[f[0]],
			V1: m.vertices[f[1]],
			V2: m.vertices[f[2]],
		}
	}
	return out
}

var _ Mesh = (*TriMesh)(nil)
