package core

import (
	"fmt"
	"maps"

	"github.com/rushteam/flowml/pkg/conv"
)

// Features 是单条样本的特征，贯穿整个流水线透传。
// 数值特征可以是任意 Go 数值类型；类别特征一般为 string；时间特征为 time.Time。
type Features map[string]any

// Clone 返回浅拷贝，保证下游修改不会影响调用方持有的 map。
func (x Features) Clone() Features {
	if x == nil {
		return Features{}
	}
	return maps.Clone(x)
}

// Float 读取数值特征，不存在或不是数值（例如 time.Time）时返回 false。
func (x Features) Float(key string) (float64, bool) {
	v, ok := x[key]
	if !ok {
		return 0, false
	}
	return conv.ToFloat64(v)
}

// Numeric 返回所有数值特征（含 bool），字符串与时间特征被忽略。
func (x Features) Numeric() map[string]float64 {
	return conv.MapToFloat64(x)
}

// Proba 是分类器输出的类别概率分布，key 为类别标签（必须可比较）。
type Proba map[any]float64

// Argmax 返回概率最大的类别；并列时取 fmt 表示较小者，保证结果确定。
// 空分布返回 (nil, false)。
func (p Proba) Argmax() (any, bool) {
	var (
		best      any
		bestProba float64
		found     bool
	)
	for label, proba := range p {
		if !found || proba > bestProba ||
			(proba == bestProba && fmt.Sprint(label) < fmt.Sprint(best)) {
			best, bestProba, found = label, proba, true
		}
	}
	return best, found
}

// Normalize 将分布归一化为和为 1；总和为 0 时原样返回。
func (p Proba) Normalize() Proba {
	total := 0.0
	for _, v := range p {
		total += v
	}
	if total == 0 {
		return p
	}
	out := make(Proba, len(p))
	for k, v := range p {
		out[k] = v / total
	}
	return out
}
