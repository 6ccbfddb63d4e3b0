// Package mathx 收集线性模型、推荐模型共用的小型数值函数。
package mathx

import (
	"math"
	"math/rand/v2"
)

// Clamp 将 x 限制在 [lo, hi]。
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Sigmoid 是数值稳定的 logistic 函数。
func Sigmoid(z float64) float64 {
	switch {
	case z < -30:
		return 1e-15
	case z > 30:
		return 1 - 1e-15
	default:
		return 1 / (1 + math.Exp(-z))
	}
}

// Dot 计算稀疏向量点积，只遍历较短的一方。
func Dot(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	s := 0.0
	for k, v := range a {
		s += v * b[k]
	}
	return s
}

// Softmax 对打分做 softmax，减去最大值以避免溢出。
func Softmax[K comparable](scores map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	max := math.Inf(-1)
	for _, v := range scores {
		max = math.Max(max, v)
	}
	total := 0.0
	for k, v := range scores {
		e := math.Exp(v - max)
		out[k] = e
		total += e
	}
	for k := range out {
		out[k] /= total
	}
	return out
}

// Poisson 用 Knuth 算法从参数为 lambda 的泊松分布采样；lambda <= 0 时返回 0。
// lambda 较大时（> 30）改用正态近似，避免 exp(-lambda) 下溢。
func Poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	if lambda > 30 {
		k := math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64())
		return int(math.Max(k, 0))
	}
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// NewRand 用 seed 创建确定性的随机数生成器。
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
