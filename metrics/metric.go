// Package metrics 提供可逐条更新、可撤销的在线评估指标。
//
// 回归指标的预测值为数值；分类指标的预测值可以是标签，也可以是 core.Proba
// （需要标签的指标取其 argmax，LogLoss 使用真实类别的概率）。
package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
)

// Metric 是在线评估指标。
type Metric interface {
	Name() string
	// Update 以权重 w 计入一条 (真实值, 预测值)
	Update(yTrue, yPred any, w float64) error
	// Revert 撤销一次相同参数的 Update
	Revert(yTrue, yPred any, w float64) error
	Get() float64
	BiggerIsBetter() bool
	// RequiresLabels 为 true 时指标只看预测标签，不看概率
	RequiresLabels() bool
	// WorksWith 判断指标能否评估该模型（回归指标对应回归器，分类指标对应分类器）
	WorksWith(e core.Estimator) bool
	// String 形如 "MAE: 0.5"
	String() string
}

// ErrInvalidPrediction 表示预测值或真实值的类型与指标不符。
var ErrInvalidPrediction = core.NewDomainError(core.ModuleMetrics, core.ErrorCodeInvalidInput, "metrics: invalid prediction")

// Format 按 "名称: 数值" 输出，数值保留 6 位小数、千分位逗号分隔并去掉末尾的 0。
func Format(name string, v float64) string {
	return name + ": " + formatValue(v)
}

func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	if strings.ContainsAny(s, "NI") { // NaN / ±Inf
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return sign + b.String()
	}
	return sign + b.String() + "." + frac
}

func toFloat(v any) (float64, error) {
	f, ok := conv.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v (%T) is not numeric", ErrInvalidPrediction, v, v)
	}
	return f, nil
}

// label 把预测值转为标签：core.Proba 取 argmax，其余原样返回。
func label(yPred any) any {
	if p, ok := yPred.(core.Proba); ok {
		l, _ := p.Argmax()
		return l
	}
	return yPred
}

// Metrics 是指标容器，同一对 (真实值, 预测值) 会更新所有指标。
// Get 与 BiggerIsBetter 以第一个指标为准。
type Metrics []Metric

func (ms Metrics) Name() string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name()
	}
	return strings.Join(names, ", ")
}

func (ms Metrics) Update(yTrue, yPred any, w float64) error {
	for _, m := range ms {
		if err := m.Update(yTrue, yPred, w); err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil
}

func (ms Metrics) Revert(yTrue, yPred any, w float64) error {
	for _, m := range ms {
		if err := m.Revert(yTrue, yPred, w); err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil
}

func (ms Metrics) Get() float64 {
	if len(ms) == 0 {
		return 0
	}
	return ms[0].Get()
}

func (ms Metrics) BiggerIsBetter() bool { return len(ms) > 0 && ms[0].BiggerIsBetter() }

// RequiresLabels 只有全部指标都只需要标签时才为 true。
func (ms Metrics) RequiresLabels() bool {
	for _, m := range ms {
		if !m.RequiresLabels() {
			return false
		}
	}
	return true
}

func (ms Metrics) WorksWith(e core.Estimator) bool {
	for _, m := range ms {
		if !m.WorksWith(e) {
			return false
		}
	}
	return true
}

func (ms Metrics) String() string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// Values 返回各指标的当前值。
func (ms Metrics) Values() []float64 {
	out := make([]float64, len(ms))
	for i, m := range ms {
		out[i] = m.Get()
	}
	return out
}

// Rolling 只统计最近 Window 条样本：窗口满时撤销最旧的一条。
type Rolling struct {
	Metric
	window int
	buf    []observation
	head   int
}

type observation struct {
	yTrue, yPred any
	w            float64
}

// NewRolling 用窗口大小 window 包装 m；m 应是新建的指标。
func NewRolling(m Metric, window int) (*Rolling, error) {
	if window <= 0 {
		return nil, core.NewDomainError(core.ModuleMetrics, core.ErrorCodeInvalidInput,
			fmt.Sprintf("metrics: rolling window must be positive, got %d", window))
	}
	return &Rolling{Metric: m, window: window}, nil
}

func (r *Rolling) Name() string { return fmt.Sprintf("Rolling(%s, %d)", r.Metric.Name(), r.window) }

func (r *Rolling) Update(yTrue, yPred any, w float64) error {
	if err := r.Metric.Update(yTrue, yPred, w); err != nil {
		return err
	}
	obs := observation{yTrue: yTrue, yPred: yPred, w: w}
	if len(r.buf) < r.window {
		r.buf = append(r.buf, obs)
		return nil
	}
	old := r.buf[r.head]
	r.buf[r.head] = obs
	r.head = (r.head + 1) % r.window
	return r.Metric.Revert(old.yTrue, old.yPred, old.w)
}

// Revert 不支持：窗口内的顺序无法恢复。
func (r *Rolling) Revert(any, any, float64) error {
	return core.NewDomainError(core.ModuleMetrics, core.ErrorCodeNotSupported, "metrics: rolling metrics cannot be reverted")
}

func (r *Rolling) String() string { return Format(r.Name(), r.Get()) }

// New 根据名称构建指标，用于配置与命令行。
func New(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "mae":
		return NewMAE(), nil
	case "mse":
		return NewMSE(), nil
	case "rmse":
		return NewRMSE(), nil
	case "r2":
		return NewR2(), nil
	case "accuracy":
		return NewAccuracy(), nil
	case "precision":
		return NewPrecision(), nil
	case "recall":
		return NewRecall(), nil
	case "f1":
		return NewF1(), nil
	case "macrof1", "macro_f1":
		return NewMacroF1(), nil
	case "logloss", "log_loss":
		return NewLogLoss(), nil
	default:
		return nil, core.NewDomainError(core.ModuleMetrics, core.ErrorCodeNotFound,
			fmt.Sprintf("metrics: unknown metric %q (supported: mae, mse, rmse, r2, accuracy, precision, recall, f1, macrof1, logloss)", name))
	}
}
