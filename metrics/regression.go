package metrics

import (
	"math"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/stats"
)

// regression 是基于误差均值的回归指标：value = finish(mean(loss(yTrue, yPred)))。
type regression struct {
	name   string
	loss   func(yTrue, yPred float64) float64
	finish func(mean float64) float64
	mean   stats.Mean
}

func (m *regression) Name() string { return m.name }

func (m *regression) pair(yTrue, yPred any) (float64, error) {
	t, err := toFloat(yTrue)
	if err != nil {
		return 0, err
	}
	p, err := toFloat(yPred)
	if err != nil {
		return 0, err
	}
	return m.loss(t, p), nil
}

func (m *regression) Update(yTrue, yPred any, w float64) error {
	l, err := m.pair(yTrue, yPred)
	if err != nil {
		return err
	}
	m.mean.UpdateWeighted(l, w)
	return nil
}

func (m *regression) Revert(yTrue, yPred any, w float64) error {
	l, err := m.pair(yTrue, yPred)
	if err != nil {
		return err
	}
	m.mean.RevertWeighted(l, w)
	return nil
}

func (m *regression) Get() float64 {
	if m.finish != nil {
		return m.finish(m.mean.Get())
	}
	return m.mean.Get()
}

func (m *regression) BiggerIsBetter() bool { return false }

func (m *regression) RequiresLabels() bool { return false }

func (m *regression) WorksWith(e core.Estimator) bool { return core.IsRegressor(e) }

func (m *regression) String() string { return Format(m.name, m.Get()) }

// NewMAE 平均绝对误差。
func NewMAE() Metric {
	return &regression{name: "MAE", loss: func(t, p float64) float64 { return math.Abs(t - p) }}
}

// NewMSE 均方误差。
func NewMSE() Metric {
	return &regression{name: "MSE", loss: func(t, p float64) float64 { return (t - p) * (t - p) }}
}

// NewRMSE 均方根误差。
func NewRMSE() Metric {
	return &regression{
		name:   "RMSE",
		loss:   func(t, p float64) float64 { return (t - p) * (t - p) },
		finish: math.Sqrt,
	}
}

// R2 决定系数：1 - SSE / SST。样本不足或真实值方差为 0 时为 0。
type R2 struct {
	yVar stats.Var
	sse  stats.Mean
}

func NewR2() *R2 { return &R2{yVar: stats.Var{Ddof: 0}} }

func (m *R2) Name() string { return "R2" }

func (m *R2) Update(yTrue, yPred any, w float64) error {
	t, p, err := pairFloats(yTrue, yPred)
	if err != nil {
		return err
	}
	m.yVar.UpdateWeighted(t, w)
	m.sse.UpdateWeighted((t-p)*(t-p), w)
	return nil
}

func (m *R2) Revert(yTrue, yPred any, w float64) error {
	t, p, err := pairFloats(yTrue, yPred)
	if err != nil {
		return err
	}
	m.yVar.RevertWeighted(t, w)
	m.sse.RevertWeighted((t-p)*(t-p), w)
	return nil
}

func (m *R2) Get() float64 {
	v := m.yVar.Get()
	if m.yVar.N() <= 1 || v == 0 {
		return 0
	}
	return 1 - m.sse.Get()/v
}

func (m *R2) BiggerIsBetter() bool { return true }

func (m *R2) RequiresLabels() bool { return false }

func (m *R2) WorksWith(e core.Estimator) bool { return core.IsRegressor(e) }

func (m *R2) String() string { return Format(m.Name(), m.Get()) }

func pairFloats(yTrue, yPred any) (float64, float64, error) {
	t, err := toFloat(yTrue)
	if err != nil {
		return 0, 0, err
	}
	p, err := toFloat(yPred)
	if err != nil {
		return 0, 0, err
	}
	return t, p, nil
}
