package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not a known resource. */
	ResourceTypeNone ResourceType = iota
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Shader resource type (compiled SPIR-V). */
	ResourceTypeShader
	/** @brief Mesh resource type. */
	ResourceTypeMesh
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeNone:
		return "none"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeMesh:
		return "mesh"
	}
	return "unknown"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The type of the loader which handled this resource. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}
