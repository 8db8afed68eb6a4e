package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/agentcouncil/types"
)

// rosterFile 名册 YAML 文件格式
//
//	personas:
//	  - id: "1"
//	    name: Sparky
//	    category: coder
//	    specialty: Go services
type rosterFile struct {
	Personas []types.Persona `yaml:"personas"`
}

// LoadFile 读取 YAML 名册。文件中的角色全部校验通过才返回，
// 空名册视为错误，调用方据此回退到默认名册。
func LoadFile(path string) ([]types.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 名册
func Parse(data []byte) ([]types.Persona, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", ErrInvalidPersona)
	}

	// 借用 Roster 的校验规则（必填、类别、去重）
	check := &Roster{}
	for i := range f.Personas {
		p := &f.Personas[i]
		if c, err := types.ParseCategory(string(p.Category)); err == nil {
			p.Category = c
		}
		if p.AvatarURL == "" {
			p.AvatarURL = types.AvatarFor(avatarStyle, p.Name)
		}
		if err := check.Add(*p); err != nil {
			return nil, fmt.Errorf("persona %d: %w", i+1, err)
		}
	}
	return f.Personas, nil
}
