// Package preprocessing 提供在线特征预处理：标准化、归一化、编码、分桶、缺失值填充、交叉特征。
//
// 每个变换器都是 core.Transformer：LearnOne 只用 x 更新统计量，TransformOne 使用当前统计量。
// 非数值特征原样透传（OneHotEncoder 除外）。
package preprocessing

import (
	"math"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/stats"
)

// StandardScaler Z-score 标准化（Standardization）
// 公式: z = (x - μ) / σ，μ 与 σ 为在线估计的均值与总体标准差
// 特点: 方差为 0 时输出 0
type StandardScaler struct {
	vars map[string]*stats.Var
}

func NewStandardScaler() *StandardScaler {
	return &StandardScaler{vars: make(map[string]*stats.Var)}
}

func (s *StandardScaler) Name() string { return "StandardScaler" }

func (s *StandardScaler) LearnOne(x core.Features) error {
	for k, v := range x {
		f, ok := conv.ToFloat64(v)
		if !ok {
			continue
		}
		st, ok := s.vars[k]
		if !ok {
			st = &stats.Var{Ddof: 0}
			s.vars[k] = st
		}
		st.Update(f)
	}
	return nil
}

func (s *StandardScaler) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		f, ok := conv.ToFloat64(v)
		if !ok {
			out[k] = v
			continue
		}
		st, ok := s.vars[k]
		if !ok {
			out[k] = 0.0
			continue
		}
		out[k] = safeDiv(f-st.Mean(), math.Sqrt(st.Get()))
	}
	return out, nil
}

// MinMaxScaler Min-Max 归一化
// 公式: x' = (x - min) / (max - min)
// 特点: 将值缩放到 [0, 1] 区间（基于已见过的数据）
type MinMaxScaler struct {
	min map[string]*stats.Min
	max map[string]*stats.Max
}

func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{min: make(map[string]*stats.Min), max: make(map[string]*stats.Max)}
}

func (s *MinMaxScaler) Name() string { return "MinMaxScaler" }

func (s *MinMaxScaler) LearnOne(x core.Features) error {
	for k, v := range x {
		f, ok := conv.ToFloat64(v)
		if !ok {
			continue
		}
		if _, ok := s.min[k]; !ok {
			s.min[k], s.max[k] = &stats.Min{}, &stats.Max{}
		}
		s.min[k].Update(f)
		s.max[k].Update(f)
	}
	return nil
}

func (s *MinMaxScaler) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		f, ok := conv.ToFloat64(v)
		if !ok {
			out[k] = v
			continue
		}
		min, ok := s.min[k]
		if !ok {
			out[k] = 0.0
			continue
		}
		out[k] = safeDiv(f-min.Get(), s.max[k].Get()-min.Get())
	}
	return out, nil
}

// MaxAbsScaler 按已见最大绝对值缩放到 [-1, 1]。
type MaxAbsScaler struct {
	maxAbs map[string]float64
}

func NewMaxAbsScaler() *MaxAbsScaler { return &MaxAbsScaler{maxAbs: make(map[string]float64)} }

func (s *MaxAbsScaler) Name() string { return "MaxAbsScaler" }

func (s *MaxAbsScaler) LearnOne(x core.Features) error {
	for k, v := range x {
		if f, ok := conv.ToFloat64(v); ok {
			s.maxAbs[k] = math.Max(s.maxAbs[k], math.Abs(f))
		}
	}
	return nil
}

func (s *MaxAbsScaler) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		if f, ok := conv.ToFloat64(v); ok {
			out[k] = safeDiv(f, s.maxAbs[k])
			continue
		}
		out[k] = v
	}
	return out, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return 0
	}
	return a / b
}

var (
	_ core.Transformer = (*StandardScaler)(nil)
	_ core.Transformer = (*MinMaxScaler)(nil)
	_ core.Transformer = (*MaxAbsScaler)(nil)
)
