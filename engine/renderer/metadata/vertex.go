package metadata

import (
	"math"
	"unsafe"
)

/**
 * @brief The vertex layout consumed by the graphics pipeline.
 * Position, color and texture coordinate, tightly packed.
 */
type Vertex struct {
	/** @brief The position of the vertex. */
	Position [3]float32
	/** @brief The color of the vertex. */
	Color [3]float32
	/** @brief The texture coordinate of the vertex. */
	Texcoord [2]float32
}

/** @brief The size in bytes of a single vertex. */
const VertexStride = uint32(unsafe.Sizeof(Vertex{}))

/** @brief Byte offsets of each attribute, in shader location order. */
var VertexOffsets = [3]uint32{
	uint32(unsafe.Offsetof(Vertex{}.Position)),
	uint32(unsafe.Offsetof(Vertex{}.Color)),
	uint32(unsafe.Offsetof(Vertex{}.Texcoord)),
}

// VertexKey identifies a vertex by the bit patterns of its components, so
// vertices that compare equal bit for bit collapse into one entry.
type VertexKey [8]uint32

func (v Vertex) Key() VertexKey {
	return VertexKey{
		math.Float32bits(v.Position[0]), math.Float32bits(v.Position[1]), math.Float32bits(v.Position[2]),
		math.Float32bits(v.Color[0]), math.Float32bits(v.Color[1]), math.Float32bits(v.Color[2]),
		math.Float32bits(v.Texcoord[0]), math.Float32bits(v.Texcoord[1]),
	}
}
