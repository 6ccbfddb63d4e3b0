// Package optim 提供逐样本（稀疏）梯度优化器、学习率调度、损失函数与权重初始化。
//
// 权重与梯度都以 map[string]float64 表示，只有出现在梯度中的 key 会被更新，
// 优化器的内部状态（动量、二阶矩等）也按 key 维护。
package optim

import "math"

// Optimizer 是在线优化器的统一接口。
type Optimizer interface {
	Name() string

	// LearningRate 返回当前迭代的学习率
	LearningRate() float64

	// UpdateBeforePred 在预测前调用（部分优化器需要提前修改权重，例如 Nesterov 类方法）
	UpdateBeforePred(w map[string]float64)

	// UpdateAfterPred 根据梯度更新权重并返回 w（原地修改）
	UpdateAfterPred(w, g map[string]float64) map[string]float64

	// Clone 返回超参数相同、状态为空的新优化器
	Clone() Optimizer
}

// Scheduler 根据已迭代次数给出学习率。
type Scheduler interface {
	Get(t int) float64
}

// Constant 是恒定学习率。
type Constant float64

func (c Constant) Get(int) float64 { return float64(c) }

// InverseScaling 以 lr / (t+1)^Power 衰减学习率。
type InverseScaling struct {
	LR    float64
	Power float64
}

func (s InverseScaling) Get(t int) float64 {
	return s.LR / math.Pow(float64(t+1), s.Power)
}

// base 承载所有优化器共享的学习率调度与迭代计数。
type base struct {
	lr Scheduler
	n  int
}

func newBase(lr float64) base { return base{lr: Constant(lr)} }

func (b *base) LearningRate() float64 { return b.lr.Get(b.n) }

func (b *base) UpdateBeforePred(map[string]float64) {}

// Iterations 返回已执行的 UpdateAfterPred 次数。
func (b *base) Iterations() int { return b.n }

func (b *base) setScheduler(s Scheduler) {
	if s != nil {
		b.lr = s
	}
}

// SGD 是朴素随机梯度下降：w -= lr * g。
type SGD struct{ base }

func NewSGD(lr float64) *SGD { return &SGD{base: newBase(lr)} }

// NewSGDWithScheduler 使用自定义学习率调度。
func NewSGDWithScheduler(s Scheduler) *SGD {
	o := &SGD{base: newBase(0)}
	o.setScheduler(s)
	return o
}

func (o *SGD) Name() string { return "SGD" }

func (o *SGD) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	lr := o.LearningRate()
	for i, gi := range g {
		w[i] -= lr * gi
	}
	o.n++
	return w
}

func (o *SGD) Clone() Optimizer { return &SGD{base: base{lr: o.lr}} }

// Momentum 是动量法：s = rho*s + lr*g；w -= s。
type Momentum struct {
	base
	Rho float64

	s map[string]float64
}

func NewMomentum(lr, rho float64) *Momentum {
	return &Momentum{base: newBase(lr), Rho: rho, s: make(map[string]float64)}
}

func (o *Momentum) Name() string { return "Momentum" }

func (o *Momentum) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	lr := o.LearningRate()
	for i, gi := range g {
		o.s[i] = o.Rho*o.s[i] + lr*gi
		w[i] -= o.s[i]
	}
	o.n++
	return w
}

func (o *Momentum) Clone() Optimizer {
	return &Momentum{base: base{lr: o.lr}, Rho: o.Rho, s: make(map[string]float64)}
}

// AdaGrad 按累计梯度平方缩放学习率。
type AdaGrad struct {
	base
	Eps float64

	g2 map[string]float64
}

func NewAdaGrad(lr float64) *AdaGrad {
	return &AdaGrad{base: newBase(lr), Eps: 1e-8, g2: make(map[string]float64)}
}

func (o *AdaGrad) Name() string { return "AdaGrad" }

func (o *AdaGrad) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	lr := o.LearningRate()
	for i, gi := range g {
		o.g2[i] += gi * gi
		w[i] -= lr / math.Sqrt(o.g2[i]+o.Eps) * gi
	}
	o.n++
	return w
}

func (o *AdaGrad) Clone() Optimizer {
	return &AdaGrad{base: base{lr: o.lr}, Eps: o.Eps, g2: make(map[string]float64)}
}

// RMSProp 使用梯度平方的指数滑动平均缩放学习率。
type RMSProp struct {
	base
	Rho float64
	Eps float64

	g2 map[string]float64
}

func NewRMSProp(lr, rho float64) *RMSProp {
	return &RMSProp{base: newBase(lr), Rho: rho, Eps: 1e-8, g2: make(map[string]float64)}
}

func (o *RMSProp) Name() string { return "RMSProp" }

func (o *RMSProp) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	lr := o.LearningRate()
	for i, gi := range g {
		o.g2[i] = o.Rho*o.g2[i] + (1-o.Rho)*gi*gi
		w[i] -= lr / math.Sqrt(o.g2[i]+o.Eps) * gi
	}
	o.n++
	return w
}

func (o *RMSProp) Clone() Optimizer {
	return &RMSProp{base: base{lr: o.lr}, Rho: o.Rho, Eps: o.Eps, g2: make(map[string]float64)}
}

// Adam 结合一阶、二阶矩估计并做偏差修正。
type Adam struct {
	base
	Beta1 float64
	Beta2 float64
	Eps   float64

	m map[string]float64
	v map[string]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		base:  newBase(lr),
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[string]float64),
		v:     make(map[string]float64),
	}
}

func (o *Adam) Name() string { return "Adam" }

func (o *Adam) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	t := float64(o.n + 1)
	lr := o.LearningRate() * math.Sqrt(1-math.Pow(o.Beta2, t)) / (1 - math.Pow(o.Beta1, t))
	for i, gi := range g {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*gi
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*gi*gi
		w[i] -= lr * o.m[i] / (math.Sqrt(o.v[i]) + o.Eps)
	}
	o.n++
	return w
}

func (o *Adam) Clone() Optimizer {
	c := NewAdam(0)
	c.lr, c.Beta1, c.Beta2, c.Eps = o.lr, o.Beta1, o.Beta2, o.Eps
	return c
}

// AdaMax 是 Adam 基于无穷范数的变体。
type AdaMax struct {
	base
	Beta1 float64
	Beta2 float64
	Eps   float64

	m map[string]float64
	u map[string]float64
}

func NewAdaMax(lr float64) *AdaMax {
	return &AdaMax{
		base:  newBase(lr),
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[string]float64),
		u:     make(map[string]float64),
	}
}

func (o *AdaMax) Name() string { return "AdaMax" }

func (o *AdaMax) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	// 修正 m 的偏差
	lr := o.LearningRate() / (1 - math.Pow(o.Beta1, float64(o.n+1)))
	for i, gi := range g {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*gi
		o.u[i] = math.Max(o.Beta2*o.u[i], math.Abs(gi))
		w[i] -= lr * o.m[i] / (o.u[i] + o.Eps)
	}
	o.n++
	return w
}

func (o *AdaMax) Clone() Optimizer {
	c := NewAdaMax(0)
	c.lr, c.Beta1, c.Beta2, c.Eps = o.lr, o.Beta1, o.Beta2, o.Eps
	return c
}

// AdaBound 把 Adam 的逐坐标步长限制在逐渐收紧的区间内，最终收敛到 FinalLR 的 SGD。
type AdaBound struct {
	base
	Beta1   float64
	Beta2   float64
	Eps     float64
	Gamma   float64
	FinalLR float64

	baseLR  float64
	finalLR float64
	m       map[string]float64
	v       map[string]float64
}

func NewAdaBound(lr, finalLR float64) *AdaBound {
	return &AdaBound{
		base:    newBase(lr),
		Beta1:   0.9,
		Beta2:   0.999,
		Eps:     1e-8,
		Gamma:   1e-3,
		FinalLR: finalLR,
		baseLR:  lr,
		finalLR: finalLR,
		m:       make(map[string]float64),
		v:       make(map[string]float64),
	}
}

func (o *AdaBound) Name() string { return "AdaBound" }

func (o *AdaBound) UpdateAfterPred(w, g map[string]float64) map[string]float64 {
	t := float64(o.n + 1)
	lr := o.LearningRate()
	bias1 := 1 - math.Pow(o.Beta1, t)
	bias2 := 1 - math.Pow(o.Beta2, t)

	stepSize := lr * math.Sqrt(bias2) / bias1
	if o.baseLR != 0 {
		o.finalLR *= lr / o.baseLR
	}

	lower := o.finalLR * (1 - 1/(o.Gamma*t+1))
	upper := o.finalLR * (1 + 1/(o.Gamma*t))

	for i, gi := range g {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*gi
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*gi*gi

		bounded := stepSize / (math.Sqrt(o.v[i]) + o.Eps)
		bounded = math.Max(lower, math.Min(upper, bounded))
		w[i] -= bounded * o.m[i]
	}
	o.n++
	return w
}

func (o *AdaBound) Clone() Optimizer {
	c := NewAdaBound(o.baseLR, o.FinalLR)
	c.lr, c.Beta1, c.Beta2, c.Eps, c.Gamma = o.lr, o.Beta1, o.Beta2, o.Eps, o.Gamma
	return c
}

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*Momentum)(nil)
	_ Optimizer = (*AdaGrad)(nil)
	_ Optimizer = (*RMSProp)(nil)
	_ Optimizer = (*Adam)(nil)
	_ Optimizer = (*AdaMax)(nil)
	_ Optimizer = (*AdaBound)(nil)
)
