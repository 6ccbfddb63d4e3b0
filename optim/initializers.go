package optim

import (
	"math/rand/v2"

	"github.com/rushteam/flowml/pkg/mathx"
)

// Initializer 产生新权重的初始值。
type Initializer interface {
	Init() float64
}

// Zeros 初始化为 0。
type Zeros struct{}

func (Zeros) Init() float64 { return 0 }

// ConstantInit 初始化为固定值。
type ConstantInit float64

func (c ConstantInit) Init() float64 { return float64(c) }

// Normal 从正态分布 N(Mu, Sigma^2) 采样，相同 seed 产生相同序列。
type Normal struct {
	Mu    float64
	Sigma float64

	rng *rand.Rand
}

func NewNormal(mu, sigma float64, seed uint64) *Normal {
	return &Normal{Mu: mu, Sigma: sigma, rng: mathx.NewRand(seed)}
}

func (n *Normal) Init() float64 { return n.Mu + n.Sigma*n.rng.NormFloat64() }

// InitN 连续采样 n 个初始值。
func InitN(init Initializer, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = init.Init()
	}
	return out
}
