package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/stats"
)

// OneHotEncoder 将类别特征编码为 "{name}_{value}": 1。
// Fields 为空时编码所有非数值特征；原始类别特征会被移除，其余特征透传。
type OneHotEncoder struct {
	Fields []string
}

func NewOneHotEncoder(fields ...string) *OneHotEncoder {
	return &OneHotEncoder{Fields: fields}
}

func (e *OneHotEncoder) Name() string { return "OneHotEncoder" }

func (e *OneHotEncoder) LearnOne(core.Features) error { return nil }

func (e *OneHotEncoder) encodes(key string, v any) bool {
	if len(e.Fields) == 0 {
		_, numeric := conv.ToFloat64(v)
		return !numeric
	}
	for _, f := range e.Fields {
		if f == key {
			return true
		}
	}
	return false
}

func (e *OneHotEncoder) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		if v == nil || !e.encodes(k, v) {
			out[k] = v
			continue
		}
		out[fmt.Sprintf("%s_%s", k, conv.Key(v))] = 1.0
	}
	return out, nil
}

// LogTransformer Log 变换
// 公式: x' = log(x + 1)
// 特点: 处理长尾分布，压缩大值；负值输出 0
type LogTransformer struct {
	Fields []string // 为空时变换全部数值特征
}

func (t *LogTransformer) Name() string { return "LogTransformer" }

func (t *LogTransformer) LearnOne(core.Features) error { return nil }

func (t *LogTransformer) TransformOne(x core.Features) (core.Features, error) {
	out := x.Clone()
	apply := func(k string) {
		f, ok := conv.ToFloat64(out[k])
		if !ok {
			return
		}
		if f < 0 {
			out[k] = 0.0
			return
		}
		out[k] = math.Log1p(f)
	}
	if len(t.Fields) == 0 {
		for k := range x {
			apply(k)
		}
		return out, nil
	}
	for _, k := range t.Fields {
		apply(k)
	}
	return out, nil
}

// Binner 自定义分桶（指定分桶边界），输出桶序号（float64）
type Binner struct {
	Bins map[string][]float64 // 每个特征的分桶边界（升序）
}

// NewBinner 创建分桶器，边界会被排序。
func NewBinner(bins map[string][]float64) *Binner {
	sorted := make(map[string][]float64, len(bins))
	for key, boundaries := range bins {
		b := append([]float64(nil), boundaries...)
		sort.Float64s(b)
		sorted[key] = b
	}
	return &Binner{Bins: sorted}
}

func (b *Binner) Name() string { return "Binner" }

func (b *Binner) LearnOne(core.Features) error { return nil }

// BinWithKey 将值分桶：小于第一个边界为 0，>= 第 i 个边界为 i。
func (b *Binner) BinWithKey(key string, value float64) int {
	boundaries := b.Bins[key]
	return sort.Search(len(boundaries), func(i int) bool { return boundaries[i] > value })
}

func (b *Binner) TransformOne(x core.Features) (core.Features, error) {
	out := x.Clone()
	for k := range b.Bins {
		if f, ok := x.Float(k); ok {
			out[k] = float64(b.BinWithKey(k, f))
		}
	}
	return out, nil
}

// StatImputer 缺失值处理器：用在线统计量（如均值）填充缺失或非数值的特征。
type StatImputer struct {
	// Fields 特征 -> 统计量名称（见 stats.New）
	Fields map[string]string

	stats map[string]stats.Univariate
}

// NewStatImputer 创建缺失值处理器，统计量名称非法时返回错误。
func NewStatImputer(fields map[string]string) (*StatImputer, error) {
	imp := &StatImputer{Fields: fields, stats: make(map[string]stats.Univariate, len(fields))}
	for k, how := range fields {
		st, err := stats.New(how)
		if err != nil {
			return nil, fmt.Errorf("imputer field %s: %w", k, err)
		}
		imp.stats[k] = st
	}
	return imp, nil
}

func (i *StatImputer) Name() string { return "StatImputer" }

func (i *StatImputer) LearnOne(x core.Features) error {
	for k, st := range i.stats {
		if f, ok := x.Float(k); ok {
			st.Update(f)
		}
	}
	return nil
}

func (i *StatImputer) TransformOne(x core.Features) (core.Features, error) {
	out := x.Clone()
	for k, st := range i.stats {
		if _, ok := x.Float(k); !ok {
			out[k] = st.Get()
		}
	}
	return out, nil
}

// FeatureCross 交叉特征生成器：对每一对 (Left, Right) 特征生成乘积 "{l}_x_{r}"。
type FeatureCross struct {
	Left  []string
	Right []string
}

func (c *FeatureCross) Name() string { return "FeatureCross" }

func (c *FeatureCross) LearnOne(core.Features) error { return nil }

func (c *FeatureCross) TransformOne(x core.Features) (core.Features, error) {
	out := x.Clone()
	for _, l := range c.Left {
		lv, ok := x.Float(l)
		if !ok {
			continue
		}
		for _, r := range c.Right {
			rv, ok := x.Float(r)
			if !ok {
				continue
			}
			out[fmt.Sprintf("%s_x_%s", l, r)] = lv * rv
		}
	}
	return out, nil
}

var (
	_ core.Transformer = (*OneHotEncoder)(nil)
	_ core.Transformer = (*LogTransformer)(nil)
	_ core.Transformer = (*Binner)(nil)
	_ core.Transformer = (*StatImputer)(nil)
	_ core.Transformer = (*FeatureCross)(nil)
)
