package metadata

/**
 * @brief Texture pixel data, always tightly packed RGBA8.
 */
type TextureData struct {
	/** @brief The name of the resource the texture was loaded from. */
	Name string
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, 4 bytes per pixel. */
	Pixels []uint8
}

/** @brief The number of channels of every loaded texture. */
const TextureChannelCount = 4

func (t *TextureData) Size() uint64 {
	return uint64(t.Width) * uint64(t.Height) * TextureChannelCount
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}
