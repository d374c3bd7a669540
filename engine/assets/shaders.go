package assets

import (
	"fmt"

	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// ShaderFiles reads both pipeline stages from the asset root each time the
// renderer asks, so a rebuild after a recompile sees the new code.
type ShaderFiles struct {
	Manager  *AssetManager
	Vertex   string
	Fragment string
}

func (s *ShaderFiles) VertexShader() ([]uint32, error) {
	return s.load(s.Vertex)
}

func (s *ShaderFiles) FragmentShader() ([]uint32, error) {
	return s.load(s.Fragment)
}

// Watch calls fn whenever one of the two stage files is rewritten.
func (s *ShaderFiles) Watch(fn func()) {
	s.Manager.OnChange(metadata.ResourceTypeShader, func(path string) {
		if path == s.Vertex || path == s.Fragment {
			fn()
		}
	})
}

// Validate loads both stages and reports the first one that cannot be decoded,
// such as a file caught halfway through being rewritten.
func (s *ShaderFiles) Validate() error {
	if _, err := s.VertexShader(); err != nil {
		return fmt.Errorf("vertex shader %s: %w", s.Vertex, err)
	}
	if _, err := s.FragmentShader(); err != nil {
		return fmt.Errorf("fragment shader %s: %w", s.Fragment, err)
	}
	return nil
}

func (s *ShaderFiles) load(name string) ([]uint32, error) {
	res, err := s.Manager.LoadAsset(name, nil)
	if err != nil {
		return nil, err
	}
	code, ok := res.Data.([]uint32)
	if !ok {
		return nil, fmt.Errorf("asset %s is not a shader", name)
	}
	return code, nil
}
