package config

import (
	"fmt"

	"github.com/rushteam/flowml/core"
)

// StepBuilder 根据 config 构建一个流水线步骤（变换器或最终模型）。
type StepBuilder func(cfg map[string]any) (core.Estimator, error)

// StepFactory 用于根据配置构建步骤实例。
type StepFactory struct {
	builders map[string]StepBuilder
}

func NewStepFactory() *StepFactory {
	return &StepFactory{builders: make(map[string]StepBuilder)}
}

// Register 注册步骤构建器。
func (f *StepFactory) Register(stepType string, builder StepBuilder) {
	f.builders[stepType] = builder
}

// Build 根据类型和配置构建步骤。
func (f *StepFactory) Build(stepType string, cfg map[string]any) (core.Estimator, error) {
	builder, ok := f.builders[stepType]
	if !ok {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotFound,
			fmt.Sprintf("unknown step type: %s", stepType))
	}
	return builder(cfg)
}
