package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/flowml/core"
)

var (
	defaultBuilders   = make(map[string]StepBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种步骤的构建逻辑，供 DefaultFactory 与配置驱动使用。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("model.linear_regression", BuildLinearRegression) }
func Register(stepType string, builder StepBuilder) {
	if stepType == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[stepType] = builder
}

// SupportedTypes 返回当前已注册的步骤类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 StepFactory。
func DefaultFactory() *StepFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := NewStepFactory()
	for stepType, builder := range defaultBuilders {
		f.Register(stepType, builder)
	}
	return f
}

// BuildStep 使用注册表构建单个步骤，供需要嵌套模型的构建器（例如 imblearn、ensemble）使用。
func BuildStep(stepType string, cfg map[string]any) (core.Estimator, error) {
	defaultBuildersMu.RLock()
	builder, ok := defaultBuilders[stepType]
	defaultBuildersMu.RUnlock()
	if !ok {
		return nil, unsupported(stepType)
	}
	return builder(cfg)
}

// ValidatePipelineConfig 校验配置中所有步骤类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	for i, sc := range cfg.Pipeline.Steps {
		if sc.Type == "" {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("config: step %d has no type", i))
		}
		defaultBuildersMu.RLock()
		_, ok := defaultBuilders[sc.Type]
		defaultBuildersMu.RUnlock()
		if !ok {
			return unsupported(sc.Type)
		}
	}
	return nil
}

func unsupported(stepType string) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotFound,
		fmt.Sprintf("unsupported step type %q (supported: %v)", stepType, SupportedTypes()))
}
