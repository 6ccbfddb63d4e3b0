package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/mathx"
	"github.com/rushteam/flowml/stats"
)

// ConfusionMatrix 是加权的在线混淆矩阵，行是真实标签，列是预测标签。
type ConfusionMatrix struct {
	counts map[any]map[any]float64
	// 每个标签作为真实值/预测值出现的累计权重
	actual    map[any]float64
	predicted map[any]float64
	total     float64
}

func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{
		counts:    make(map[any]map[any]float64),
		actual:    make(map[any]float64),
		predicted: make(map[any]float64),
	}
}

func (cm *ConfusionMatrix) Update(yTrue, yPred any, w float64) {
	row, ok := cm.counts[yTrue]
	if !ok {
		row = make(map[any]float64)
		cm.counts[yTrue] = row
	}
	row[yPred] += w
	cm.actual[yTrue] += w
	cm.predicted[yPred] += w
	cm.total += w
}

func (cm *ConfusionMatrix) Revert(yTrue, yPred any, w float64) {
	cm.Update(yTrue, yPred, -w)
}

// Count 返回真实为 yTrue、预测为 yPred 的累计权重。
func (cm *ConfusionMatrix) Count(yTrue, yPred any) float64 { return cm.counts[yTrue][yPred] }

func (cm *ConfusionMatrix) TruePositives(label any) float64 { return cm.Count(label, label) }

func (cm *ConfusionMatrix) FalsePositives(label any) float64 {
	return cm.predicted[label] - cm.TruePositives(label)
}

func (cm *ConfusionMatrix) FalseNegatives(label any) float64 {
	return cm.actual[label] - cm.TruePositives(label)
}

func (cm *ConfusionMatrix) Total() float64 { return cm.total }

// Classes 返回出现过的标签（真实或预测），按 fmt 表示排序。
func (cm *ConfusionMatrix) Classes() []any {
	seen := make(map[any]struct{})
	var out []any
	for _, m := range []map[any]float64{cm.actual, cm.predicted} {
		for c, w := range m {
			if _, ok := seen[c]; ok || w == 0 {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return fmt.Sprint(out[i]) < fmt.Sprint(out[j]) })
	return out
}

func (cm *ConfusionMatrix) String() string {
	classes := cm.Classes()
	var b strings.Builder
	for _, c := range classes {
		fmt.Fprintf(&b, "\t%v", c)
	}
	for _, t := range classes {
		fmt.Fprintf(&b, "\n%v", t)
		for _, p := range classes {
			fmt.Fprintf(&b, "\t%s", formatValue(cm.Count(t, p)))
		}
	}
	return b.String()
}

// labelMetric 是基于混淆矩阵、只看预测标签的分类指标。
type labelMetric struct {
	name   string
	bigger bool
	cm     *ConfusionMatrix
	value  func(cm *ConfusionMatrix) float64
}

func newLabelMetric(name string, value func(cm *ConfusionMatrix) float64) *labelMetric {
	return &labelMetric{name: name, bigger: true, cm: NewConfusionMatrix(), value: value}
}

func (m *labelMetric) Name() string { return m.name }

func (m *labelMetric) Update(yTrue, yPred any, w float64) error {
	m.cm.Update(yTrue, label(yPred), w)
	return nil
}

func (m *labelMetric) Revert(yTrue, yPred any, w float64) error {
	m.cm.Revert(yTrue, label(yPred), w)
	return nil
}

func (m *labelMetric) Get() float64 { return m.value(m.cm) }

func (m *labelMetric) BiggerIsBetter() bool { return m.bigger }

func (m *labelMetric) RequiresLabels() bool { return true }

func (m *labelMetric) WorksWith(e core.Estimator) bool { return core.IsClassifier(e) }

func (m *labelMetric) String() string { return Format(m.name, m.Get()) }

// Matrix 返回指标内部的混淆矩阵。
func (m *labelMetric) Matrix() *ConfusionMatrix { return m.cm }

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// NewAccuracy 准确率。
func NewAccuracy() Metric {
	return newLabelMetric("Accuracy", func(cm *ConfusionMatrix) float64 {
		correct := 0.0
		for c := range cm.actual {
			correct += cm.TruePositives(c)
		}
		return ratio(correct, cm.total)
	})
}

// NewPrecision 二分类精确率，正类为 true。
func NewPrecision() Metric { return NewPrecisionFor(true) }

// NewPrecisionFor 指定正类标签的精确率。
func NewPrecisionFor(pos any) Metric {
	return newLabelMetric("Precision", func(cm *ConfusionMatrix) float64 { return precision(cm, pos) })
}

// NewRecall 二分类召回率，正类为 true。
func NewRecall() Metric { return NewRecallFor(true) }

func NewRecallFor(pos any) Metric {
	return newLabelMetric("Recall", func(cm *ConfusionMatrix) float64 { return recall(cm, pos) })
}

// NewF1 二分类 F1，正类为 true。
func NewF1() Metric { return NewF1For(true) }

func NewF1For(pos any) Metric {
	return newLabelMetric("F1", func(cm *ConfusionMatrix) float64 { return f1(cm, pos) })
}

// NewMacroF1 各类别 F1 的算术平均。
func NewMacroF1() Metric {
	return newLabelMetric("MacroF1", func(cm *ConfusionMatrix) float64 {
		classes := cm.Classes()
		if len(classes) == 0 {
			return 0
		}
		total := 0.0
		for _, c := range classes {
			total += f1(cm, c)
		}
		return total / float64(len(classes))
	})
}

func precision(cm *ConfusionMatrix, pos any) float64 {
	tp := cm.TruePositives(pos)
	return ratio(tp, tp+cm.FalsePositives(pos))
}

func recall(cm *ConfusionMatrix, pos any) float64 {
	tp := cm.TruePositives(pos)
	return ratio(tp, tp+cm.FalseNegatives(pos))
}

func f1(cm *ConfusionMatrix, pos any) float64 {
	p, r := precision(cm, pos), recall(cm, pos)
	return ratio(2*p*r, p+r)
}

// LogLoss 交叉熵损失：-log(p(真实类别))，概率裁剪到 [1e-15, 1-1e-15]。
// 预测值不是 core.Proba 时，预测正确视为概率 1，否则为 0。
type LogLoss struct {
	mean stats.Mean
}

func NewLogLoss() *LogLoss { return &LogLoss{} }

func (m *LogLoss) Name() string { return "LogLoss" }

func (m *LogLoss) loss(yTrue, yPred any) float64 {
	var p float64
	switch pred := yPred.(type) {
	case core.Proba:
		p = pred[yTrue]
	default:
		if pred == yTrue {
			p = 1
		}
	}
	p = mathx.Clamp(p, 1e-15, 1-1e-15)
	return -math.Log(p)
}

func (m *LogLoss) Update(yTrue, yPred any, w float64) error {
	m.mean.UpdateWeighted(m.loss(yTrue, yPred), w)
	return nil
}

func (m *LogLoss) Revert(yTrue, yPred any, w float64) error {
	m.mean.RevertWeighted(m.loss(yTrue, yPred), w)
	return nil
}

func (m *LogLoss) Get() float64 { return m.mean.Get() }

func (m *LogLoss) BiggerIsBetter() bool { return false }

func (m *LogLoss) RequiresLabels() bool { return false }

func (m *LogLoss) WorksWith(e core.Estimator) bool { return core.IsClassifier(e) }

func (m *LogLoss) String() string { return Format(m.Name(), m.Get()) }
