package model

import (
	"fmt"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/pkg/mathx"
)

// LogisticRegression 实现了在线逻辑回归 (Logistic Regression) 二分类。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 目标值等于 PosLabel（默认 true）视为正类；其余 bool / 数值按 0/1 解释。
// PredictProbaOne 返回 {PosLabel: P, NegLabel: 1-P}。
type LogisticRegression struct {
	linear

	PosLabel any
	NegLabel any
}

func NewLogisticRegression(opt optim.Optimizer) *LogisticRegression {
	return &LogisticRegression{
		linear:   newLinear(opt, optim.Log{}),
		PosLabel: true,
		NegLabel: false,
	}
}

func (m *LogisticRegression) Name() string { return "LogisticRegression" }

func (m *LogisticRegression) binary(y any) (float64, error) {
	switch y {
	case m.PosLabel:
		return 1, nil
	case m.NegLabel:
		return 0, nil
	}
	if f, ok := conv.ToFloat64(y); ok && (f == 0 || f == 1) {
		return f, nil
	}
	return 0, fmt.Errorf("logistic regression target %v: %w", y, core.ErrInvalidTarget)
}

func (m *LogisticRegression) LearnOne(x core.Features, y any) error {
	target, err := m.binary(y)
	if err != nil {
		return err
	}
	m.learn(x.Numeric(), target)
	return nil
}

func (m *LogisticRegression) PredictProbaOne(x core.Features) (core.Proba, error) {
	p := mathx.Sigmoid(m.raw(x.Numeric()))
	return core.Proba{m.PosLabel: p, m.NegLabel: 1 - p}, nil
}

// LoadLogisticRegression 从 JSON 快照文件加载（{"bias": ..., "weights": {...}}）。
func LoadLogisticRegression(path string, opt optim.Optimizer) (*LogisticRegression, error) {
	m := NewLogisticRegression(opt)
	if err := readState(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	_ core.Classifier  = (*LogisticRegression)(nil)
	_ core.Snapshotter = (*LogisticRegression)(nil)
)
