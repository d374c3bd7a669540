package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const quadOBJ = `o quad
v -0.5 -0.5 0.0
v 0.5 -0.5 0.0
v 0.5 0.5 0.0
v -0.5 0.5 0.0
vt 0.0 0.0
vt 1.0 0.0
vt 1.0 1.0
vt 0.0 1.0
usemtl default
f 1/1 2/2 3/3
f 1/1 3/3 4/4
`

func TestDecodeSPIRV(t *testing.T) {
	g := NewWithT(t)

	code, err := DecodeSPIRV([]byte{0x03, 0x02, 0x23, 0x07, 0x02, 0x01, 0x00, 0x00})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(code).To(Equal([]uint32{0x07230203, 0x00000102}))

	for _, n := range []int{0, 1, 5, 7} {
		_, err := DecodeSPIRV(make([]byte, n))
		g.Expect(err).To(MatchError(core.ErrShaderMalformed), "length %d", n)
	}
}

func TestShaderLoaderReadsFile(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "vert.spv")
	g.Expect(os.WriteFile(good, []byte{1, 0, 0, 0}, 0o644)).To(Succeed())
	res, err := (&ShaderLoader{}).Load(good, metadata.ResourceTypeShader, nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Name).To(Equal("vert"))
	g.Expect(res.Type).To(Equal(metadata.ResourceTypeShader))
	g.Expect(res.Data).To(Equal([]uint32{1}))

	bad := filepath.Join(dir, "frag.spv")
	g.Expect(os.WriteFile(bad, []byte{1, 2, 3}, 0o644)).To(Succeed())
	_, err = (&ShaderLoader{}).Load(bad, metadata.ResourceTypeShader, nil)
	g.Expect(err).To(MatchError(core.ErrShaderMalformed))

	_, err = (&ShaderLoader{}).Load(filepath.Join(dir, "missing.spv"), metadata.ResourceTypeShader, nil)
	g.Expect(err).To(MatchError(os.ErrNotExist))
}

func TestDecodeOBJDeduplicatesVertices(t *testing.T) {
	g := NewWithT(t)

	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), "quad", 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mesh.Name).To(Equal("quad"))
	g.Expect(mesh.Vertices).To(HaveLen(4))
	g.Expect(mesh.Indices).To(Equal([]uint32{0, 1, 2, 0, 2, 3}))
	g.Expect(mesh.IndexCount()).To(BeEquivalentTo(6))

	first := mesh.Vertices[0]
	g.Expect(first.Position).To(Equal([3]float32{-0.5, -0.5, 0}))
	g.Expect(first.Color).To(Equal([3]float32{1, 1, 1}))
	// V is flipped.
	g.Expect(first.Texcoord).To(Equal([2]float32{0, 1}))
	g.Expect(mesh.Vertices[2].Texcoord).To(Equal([2]float32{1, 0}))
}

func TestDecodeOBJTriangulatesPolygons(t *testing.T) {
	g := NewWithT(t)

	src := strings.Replace(quadOBJ, "f 1/1 2/2 3/3\nf 1/1 3/3 4/4\n", "f 1/1 2/2 3/3 4/4\n", 1)
	mesh, err := DecodeOBJ(strings.NewReader(src), "quad", 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mesh.Vertices).To(HaveLen(4))
	g.Expect(mesh.Indices).To(Equal([]uint32{0, 1, 2, 0, 2, 3}))
}

func TestDecodeOBJSamePositionDifferentTexcoord(t *testing.T) {
	g := NewWithT(t)

	src := `o seam
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
vt 0.5 0.5
usemtl default
f 1/1 2/2 3/3
f 1/4 2/2 3/3
`
	mesh, err := DecodeOBJ(strings.NewReader(src), "seam", 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mesh.Vertices).To(HaveLen(4))
	g.Expect(mesh.Indices).To(Equal([]uint32{0, 1, 2, 3, 1, 2}))
}

func TestDecodeOBJElementLimit(t *testing.T) {
	g := NewWithT(t)

	_, err := DecodeOBJ(strings.NewReader(quadOBJ), "quad", 5)
	g.Expect(err).To(MatchError(core.ErrAllocation))

	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), "quad", 6)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mesh.Indices).To(HaveLen(6))
}

func TestModelLoaderReadsFile(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "room.obj")
	g.Expect(os.WriteFile(path, []byte(quadOBJ), 0o644)).To(Succeed())

	res, err := (&ModelLoader{}).Load(path, metadata.ResourceTypeMesh, nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Type).To(Equal(metadata.ResourceTypeMesh))
	mesh := res.Data.(*metadata.MeshData)
	g.Expect(mesh.Name).To(Equal("room"))
	g.Expect(res.DataSize).To(BeEquivalentTo(4*metadata.VertexStride + 6*4))

	_, err = (&ModelLoader{MaxElements: 2}).Load(path, metadata.ResourceTypeMesh, nil)
	g.Expect(err).To(MatchError(core.ErrAllocation))
}

func encodePNG(g *WithT, img image.Image) *bytes.Buffer {
	var buf bytes.Buffer
	g.Expect(png.Encode(&buf, img)).To(Succeed())
	return &buf
}

func TestDecodeTextureConvertsToRGBA(t *testing.T) {
	g := NewWithT(t)

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(0, 0, color.Gray{Y: 128})
	gray.SetGray(1, 0, color.Gray{Y: 255})

	tex, err := DecodeTexture(encodePNG(g, gray), "gray", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tex.Width).To(BeEquivalentTo(2))
	g.Expect(tex.Height).To(BeEquivalentTo(1))
	g.Expect(tex.Pixels).To(Equal([]uint8{128, 128, 128, 255, 255, 255, 255, 255}))
	g.Expect(tex.Size()).To(BeEquivalentTo(len(tex.Pixels)))
}

func TestDecodeTextureFlipY(t *testing.T) {
	g := NewWithT(t)

	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})

	tex, err := DecodeTexture(encodePNG(g, img), "column", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tex.Pixels).To(Equal([]uint8{255, 0, 0, 255, 0, 0, 255, 255}))

	tex, err = DecodeTexture(encodePNG(g, img), "column", true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tex.Pixels).To(Equal([]uint8{0, 0, 255, 255, 255, 0, 0, 255}))
}

func TestTextureLoaderDecodesBMP(t *testing.T) {
	g := NewWithT(t)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	g.Expect(bmp.Encode(&buf, img)).To(Succeed())
	path := filepath.Join(t.TempDir(), "tile.bmp")
	g.Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())

	res, err := (&TextureLoader{}).Load(path, metadata.ResourceTypeImage, &metadata.ImageResourceParams{})
	g.Expect(err).NotTo(HaveOccurred())
	tex := res.Data.(*metadata.TextureData)
	g.Expect(tex.Name).To(Equal("tile"))
	g.Expect(tex.Pixels).To(HaveLen(64))
	g.Expect(tex.Pixels[:4]).To(Equal([]uint8{10, 20, 30, 255}))
	g.Expect(res.DataSize).To(BeEquivalentTo(64))
}

func TestDecodeTextureRejectsGarbage(t *testing.T) {
	g := NewWithT(t)
	_, err := DecodeTexture(strings.NewReader("not an image"), "junk", false)
	g.Expect(err).To(MatchError(image.ErrFormat))
}
