package loaders

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// ShaderLoader reads compiled SPIR-V. The resource data is the []uint32
// word stream handed to shader module creation.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := DecodeSPIRV(data)
	if err != nil {
		core.LogError("shader %s: %s", path, err)
		return nil, fmt.Errorf("failed to load shader %s: %w", path, err)
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeShader,
		Name:     nameOf(path),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     code,
	}, nil
}

func (sl *ShaderLoader) Unload(*metadata.Resource) error {
	return nil
}

// DecodeSPIRV turns a SPIR-V binary into its little-endian words.
func DecodeSPIRV(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(b), core.ErrShaderMalformed)
	}
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return code, nil
}
