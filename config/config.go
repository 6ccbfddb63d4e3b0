// Package config 从 YAML / JSON / TOML 声明式地构建 compose.Pipeline。
//
// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/flowml/config/builders"
// 以触发内置步骤（preprocessing.*、feature.*、model.* 等）的 init 注册。
//
//	pipeline:
//	  name: taxi
//	  steps:
//	    - type: preprocessing.standard_scaler
//	    - type: model.linear_regression
//	      config: {optimizer: sgd, lr: 0.01}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/flowml/compose"
	"github.com/rushteam/flowml/core"
)

// Config 是流水线配置。
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name" toml:"name"`
		Steps []StepConfig `yaml:"steps" json:"steps" toml:"steps"`
	} `yaml:"pipeline" json:"pipeline" toml:"pipeline"`
}

// StepConfig 是单个步骤的配置。
type StepConfig struct {
	Type   string         `yaml:"type" json:"type" toml:"type"`       // preprocessing.standard_scaler / model.linear_regression 等
	Config map[string]any `yaml:"config" json:"config" toml:"config"` // 步骤特定配置
}

// Format 配置文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Load 按扩展名（.yaml/.yml、.json、.toml）加载配置。
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadFromYAML(path)
	case ".json":
		return LoadFromJSON(path)
	case ".toml":
		return LoadFromTOML(path)
	default:
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotSupported,
			fmt.Sprintf("config: unsupported file extension %q (supported: .yaml, .yml, .json, .toml)", filepath.Ext(path)))
	}
}

// LoadFromYAML 从 YAML 文件加载配置。
func LoadFromYAML(path string) (*Config, error) { return loadFile(path, FormatYAML) }

// LoadFromJSON 从 JSON 文件加载配置。
func LoadFromJSON(path string) (*Config, error) { return loadFile(path, FormatJSON) }

// LoadFromTOML 从 TOML 文件加载配置。
func LoadFromTOML(path string) (*Config, error) { return loadFile(path, FormatTOML) }

func loadFile(path string, format Format) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data, format)
}

// Parse 解析配置内容。
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotSupported,
			fmt.Sprintf("config: unsupported format %q", format))
	}
	return &cfg, nil
}

// BuildPipeline 根据配置构建流水线（需要 StepFactory 注册步骤构建器）。
func (c *Config) BuildPipeline(factory *StepFactory) (*compose.Pipeline, error) {
	if len(c.Pipeline.Steps) == 0 {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "config: pipeline has no steps")
	}
	steps := make([]core.Estimator, 0, len(c.Pipeline.Steps))
	for i, sc := range c.Pipeline.Steps {
		step, err := factory.Build(sc.Type, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("build step %d (%s): %w", i, sc.Type, err)
		}
		steps = append(steps, step)
	}
	return compose.NewPipeline(steps...)
}

// Build 使用默认注册表校验并构建流水线。
func (c *Config) Build() (*compose.Pipeline, error) {
	if err := ValidatePipelineConfig(c); err != nil {
		return nil, err
	}
	return c.BuildPipeline(DefaultFactory())
}
