// Package stats 提供单变量在线统计量：逐条更新、O(1) 读取，部分支持撤销（Revert）。
//
// 撤销能力是滑动窗口统计与滑动窗口指标的基础：窗口满时撤销最旧的值即可。
package stats

import (
	"math"
	"strconv"
)

// Univariate 是单变量在线统计量。
type Univariate interface {
	Name() string
	Update(x float64)
	Get() float64
}

// Revertable 是可以撤销一次 Update 的统计量。
type Revertable interface {
	Univariate
	Revert(x float64)
}

// Mean 是（加权）算术平均。
type Mean struct {
	n    float64
	mean float64
}

func NewMean() *Mean { return &Mean{} }

func (m *Mean) Name() string { return "mean" }

func (m *Mean) Update(x float64) { m.UpdateWeighted(x, 1) }

// UpdateWeighted 以权重 w 更新均值。
func (m *Mean) UpdateWeighted(x, w float64) {
	m.n += w
	if m.n > 0 {
		m.mean += w / m.n * (x - m.mean)
	}
}

func (m *Mean) Revert(x float64) { m.RevertWeighted(x, 1) }

// RevertWeighted 撤销一次权重为 w 的更新。
func (m *Mean) RevertWeighted(x, w float64) {
	m.n -= w
	if m.n <= 0 {
		m.n, m.mean = 0, 0
		return
	}
	m.mean -= w / m.n * (x - m.mean)
}

func (m *Mean) Get() float64 { return m.mean }

// N 返回累计权重（无权重时即样本数）。
func (m *Mean) N() float64 { return m.n }

// Var 是基于 Welford 算法的在线方差，Ddof 为自由度修正（默认 1，即样本方差）。
type Var struct {
	Ddof int

	mean Mean
	s    float64
}

func NewVar() *Var { return &Var{Ddof: 1} }

func (v *Var) Name() string { return "var" }

func (v *Var) Update(x float64) { v.UpdateWeighted(x, 1) }

func (v *Var) UpdateWeighted(x, w float64) {
	old := v.mean.Get()
	v.mean.UpdateWeighted(x, w)
	v.s += w * (x - old) * (x - v.mean.Get())
}

func (v *Var) Revert(x float64) { v.RevertWeighted(x, 1) }

func (v *Var) RevertWeighted(x, w float64) {
	old := v.mean.Get()
	v.mean.RevertWeighted(x, w)
	if v.mean.N() == 0 {
		v.s = 0
		return
	}
	v.s -= w * (x - old) * (x - v.mean.Get())
}

func (v *Var) Get() float64 {
	if n := v.mean.N(); n > float64(v.Ddof) {
		return v.s / (n - float64(v.Ddof))
	}
	return 0
}

// Mean 返回当前均值。
func (v *Var) Mean() float64 { return v.mean.Get() }

// N 返回样本数。
func (v *Var) N() float64 { return v.mean.N() }

// Std 是标准差。
type Std struct{ Var }

func NewStd() *Std { return &Std{Var: Var{Ddof: 1}} }

func (s *Std) Name() string { return "std" }

func (s *Std) Get() float64 { return math.Sqrt(s.Var.Get()) }

// Count 统计样本数。
type Count struct{ n float64 }

func (c *Count) Name() string     { return "count" }
func (c *Count) Update(_ float64) { c.n++ }
func (c *Count) Revert(_ float64) { c.n-- }
func (c *Count) Get() float64     { return c.n }

// Sum 是累加和。
type Sum struct{ sum float64 }

func (s *Sum) Name() string     { return "sum" }
func (s *Sum) Update(x float64) { s.sum += x }
func (s *Sum) Revert(x float64) { s.sum -= x }
func (s *Sum) Get() float64     { return s.sum }

// Min 是运行最小值（未见样本时为 +Inf）。
type Min struct {
	min  float64
	seen bool
}

func (m *Min) Name() string { return "min" }

func (m *Min) Update(x float64) {
	if !m.seen || x < m.min {
		m.min, m.seen = x, true
	}
}

func (m *Min) Get() float64 {
	if !m.seen {
		return math.Inf(1)
	}
	return m.min
}

// Max 是运行最大值（未见样本时为 -Inf）。
type Max struct {
	max  float64
	seen bool
}

func (m *Max) Name() string { return "max" }

func (m *Max) Update(x float64) {
	if !m.seen || x > m.max {
		m.max, m.seen = x, true
	}
}

func (m *Max) Get() float64 {
	if !m.seen {
		return math.Inf(-1)
	}
	return m.max
}

// PeakToPeak 是运行最大值与最小值之差。
type PeakToPeak struct {
	min Min
	max Max
}

func (p *PeakToPeak) Name() string { return "ptp" }

func (p *PeakToPeak) Update(x float64) {
	p.min.Update(x)
	p.max.Update(x)
}

func (p *PeakToPeak) Get() float64 {
	if !p.min.seen {
		return 0
	}
	return p.max.Get() - p.min.Get()
}

// EWMean 是指数加权均值：mean = alpha*x + (1-alpha)*mean，第一个样本直接作为初值。
type EWMean struct {
	Alpha float64

	mean float64
	seen bool
}

func NewEWMean(alpha float64) *EWMean { return &EWMean{Alpha: alpha} }

func (e *EWMean) Name() string { return "ewm_" + formatParam(e.Alpha) }

func (e *EWMean) Update(x float64) {
	if !e.seen {
		e.mean, e.seen = x, true
		return
	}
	e.mean = e.Alpha*x + (1-e.Alpha)*e.mean
}

func (e *EWMean) Get() float64 { return e.mean }

// EWVar 是指数加权方差：E[x^2] - E[x]^2。
type EWVar struct {
	Alpha float64

	mean   EWMean
	sqMean EWMean
}

func NewEWVar(alpha float64) *EWVar {
	return &EWVar{Alpha: alpha, mean: EWMean{Alpha: alpha}, sqMean: EWMean{Alpha: alpha}}
}

func (e *EWVar) Name() string { return "ewvar_" + formatParam(e.Alpha) }

func (e *EWVar) Update(x float64) {
	e.mean.Update(x)
	e.sqMean.Update(x * x)
}

func (e *EWVar) Get() float64 {
	m := e.mean.Get()
	return e.sqMean.Get() - m*m
}

func formatParam(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

var (
	_ Revertable = (*Mean)(nil)
	_ Revertable = (*Var)(nil)
	_ Revertable = (*Std)(nil)
	_ Revertable = (*Count)(nil)
	_ Revertable = (*Sum)(nil)
	_ Univariate = (*Min)(nil)
	_ Univariate = (*Max)(nil)
	_ Univariate = (*PeakToPeak)(nil)
	_ Univariate = (*EWMean)(nil)
	_ Univariate = (*EWVar)(nil)
)
