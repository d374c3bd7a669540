package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// TextureLoader decodes any registered image format into RGBA8 pixels.
// params may be a *metadata.ImageResourceParams.
type TextureLoader struct{}

func (tl *TextureLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	flipY := false
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flipY = p.FlipY
	}

	tex, err := DecodeTexture(file, nameOf(path), flipY)
	if err != nil {
		core.LogError("texture %s: %s", path, err)
		return nil, fmt.Errorf("failed to load texture %s: %w", path, err)
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeImage,
		Name:     tex.Name,
		FullPath: path,
		DataSize: tex.Size(),
		Data:     tex,
	}, nil
}

func (tl *TextureLoader) Unload(*metadata.Resource) error {
	return nil
}

// DecodeTexture converts the image to tightly packed, non-premultiplied RGBA8.
func DecodeTexture(r io.Reader, name string, flipY bool) (*metadata.TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%s image %s is empty", format, name)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	if flipY {
		flipRows(dst.Pix, dst.Stride)
	}

	core.LogDebug("decoded %s texture %s (%dx%d)", format, name, bounds.Dx(), bounds.Dy())
	return &metadata.TextureData{
		Name:   name,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: dst.Pix,
	}, nil
}

func flipRows(pix []uint8, stride int) {
	tmp := make([]uint8, stride)
	for top, bottom := 0, len(pix)-stride; top < bottom; top, bottom = top+stride, bottom-stride {
		copy(tmp, pix[top:top+stride])
		copy(pix[top:top+stride], pix[bottom:bottom+stride])
		copy(pix[bottom:bottom+stride], tmp)
	}
}

func nameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
