package model

import (
	"fmt"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/conv"
)

// LinearRegression 是在线线性回归：y = Bias + sum(Weight_i * Feature_i)。
// 默认使用 SGD(0.01) 与平方损失。
type LinearRegression struct {
	linear
}

func NewLinearRegression(opt optim.Optimizer) *LinearRegression {
	return &LinearRegression{linear: newLinear(opt, optim.Squared{})}
}

func (m *LinearRegression) Name() string { return "LinearRegression" }

func (m *LinearRegression) LearnOne(x core.Features, y any) error {
	target, ok := conv.ToFloat64(y)
	if !ok || !isFinite(target) {
		return fmt.Errorf("linear regression target %v: %w", y, core.ErrInvalidTarget)
	}
	m.learn(x.Numeric(), target)
	return nil
}

func (m *LinearRegression) PredictOne(x core.Features) (float64, error) {
	return m.raw(x.Numeric()), nil
}

// LoadLinearRegression 从 JSON 快照文件加载（{"bias": ..., "weights": {...}}）。
func LoadLinearRegression(path string, opt optim.Optimizer) (*LinearRegression, error) {
	m := NewLinearRegression(opt)
	if err := readState(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	_ core.Regressor   = (*LinearRegression)(nil)
	_ core.Snapshotter = (*LinearRegression)(nil)
)
