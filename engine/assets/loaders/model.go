package loaders

import (
	"fmt"
	"io"
	"os"

	"github.com/mokiat/go-data-front/decoder/obj"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// ModelLoader parses Wavefront OBJ files into a de-duplicated MeshData.
type ModelLoader struct {
	// MaxElements caps the vertex and index lists. Zero means no cap.
	MaxElements int
}

func (ml *ModelLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mesh, err := DecodeOBJ(f, nameOf(path), ml.MaxElements)
	if err != nil {
		core.LogError("model %s: %s", path, err)
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeMesh,
		Name:     mesh.Name,
		FullPath: path,
		DataSize: uint64(len(mesh.VertexBytes()) + len(mesh.IndexBytes())),
		Data:     mesh,
	}, nil
}

func (ml *ModelLoader) Unload(*metadata.Resource) error {
	return nil
}

// meshBuilder grows the vertex and index lists, folding identical
// vertices into a single entry.
type meshBuilder struct {
	limit    int
	vertices []metadata.Vertex
	indices  []uint32
	seen     map[metadata.VertexKey]uint32
}

func (b *meshBuilder) reserve(n, extra int) error {
	if b.limit > 0 && n+extra > b.limit {
		return fmt.Errorf("mesh needs more than %d elements: %w", b.limit, core.ErrAllocation)
	}
	return nil
}

func (b *meshBuilder) add(v metadata.Vertex) error {
	if err := b.reserve(len(b.indices), 1); err != nil {
		return err
	}
	key := v.Key()
	if idx, ok := b.seen[key]; ok {
		b.indices = append(b.indices, idx)
		return nil
	}
	if err := b.reserve(len(b.vertices), 1); err != nil {
		return err
	}
	idx := uint32(len(b.vertices))
	b.vertices = append(b.vertices, v)
	b.seen[key] = idx
	b.indices = append(b.indices, idx)
	return nil
}

// DecodeOBJ reads an OBJ stream. Polygons are split into triangle fans,
// every vertex is white and the texture V axis is flipped to match the
// image row order.
func DecodeOBJ(r io.Reader, name string, maxElements int) (*metadata.MeshData, error) {
	decoder := obj.NewDecoder(obj.DefaultLimits())
	model, err := decoder.Decode(r)
	if err != nil {
		return nil, err
	}

	b := &meshBuilder{
		limit: maxElements,
		seen:  make(map[metadata.VertexKey]uint32),
	}
	for _, object := range model.Objects {
		for _, mesh := range object.Meshes {
			for _, face := range mesh.Faces {
				refs := face.References
				for i := 1; i+1 < len(refs); i++ {
					for _, ref := range []obj.Reference{refs[0], refs[i], refs[i+1]} {
						if err := b.add(vertexFrom(model, ref)); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}
	if len(b.indices) == 0 {
		return nil, fmt.Errorf("model %s has no faces", name)
	}

	return &metadata.MeshData{
		Name:     name,
		Vertices: b.vertices,
		Indices:  b.indices,
	}, nil
}

func vertexFrom(model *obj.Model, ref obj.Reference) metadata.Vertex {
	p := model.GetVertexFromReference(ref)
	v := metadata.Vertex{
		Position: [3]float32{float32(p.X), float32(p.Y), float32(p.Z)},
		Color:    [3]float32{1, 1, 1},
	}
	if ref.HasTexCoord() {
		tc := model.GetTexCoordFromReference(ref)
		v.Texcoord = [2]float32{float32(tc.U), 1 - float32(tc.V)}
	}
	return v
}
