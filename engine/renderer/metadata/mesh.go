package metadata

import "unsafe"

/**
 * @brief A mesh ready to be uploaded: a de-duplicated vertex list and
 * the triangle list indexing into it.
 */
type MeshData struct {
	/** @brief The name of the resource the mesh was loaded from. */
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes views the vertex slice as raw bytes without copying.
func (m *MeshData) VertexBytes() []byte {
	if len(m.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.Vertices[0])), len(m.Vertices)*int(VertexStride))
}

// IndexBytes views the index slice as raw bytes without copying.
func (m *MeshData) IndexBytes() []byte {
	if len(m.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.Indices[0])), len(m.Indices)*4)
}

func (m *MeshData) IndexCount() uint32 {
	return uint32(len(m.Indices))
}
