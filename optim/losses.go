package optim

import (
	"math"

	"github.com/rushteam/flowml/core"
)

// Loss 是回归/二分类的逐样本损失。
// 二分类损失约定 yTrue ∈ {0, 1}，yPred 为线性模型的原始输出（未经 sigmoid）。
type Loss interface {
	Name() string
	Eval(yTrue, yPred float64) float64
	// Gradient 返回损失对 yPred 的导数
	Gradient(yTrue, yPred float64) float64
}

// Squared 是平方损失 (yPred - yTrue)^2。
type Squared struct{}

func (Squared) Name() string { return "Squared" }

func (Squared) Eval(yTrue, yPred float64) float64 {
	d := yPred - yTrue
	return d * d
}

func (Squared) Gradient(yTrue, yPred float64) float64 { return 2 * (yPred - yTrue) }

// Absolute 是绝对值损失 |yPred - yTrue|。
type Absolute struct{}

func (Absolute) Name() string { return "Absolute" }

func (Absolute) Eval(yTrue, yPred float64) float64 { return math.Abs(yPred - yTrue) }

func (Absolute) Gradient(yTrue, yPred float64) float64 {
	switch {
	case yPred > yTrue:
		return 1
	case yPred < yTrue:
		return -1
	default:
		return 0
	}
}

// Log 是二分类对数损失（logistic loss）。
type Log struct{}

func (Log) Name() string { return "Log" }

func (Log) Eval(yTrue, yPred float64) float64 {
	z := yPred * (2*yTrue - 1)
	switch {
	case z > 18:
		return math.Exp(-z)
	case z < -18:
		return -z
	default:
		return math.Log1p(math.Exp(-z))
	}
}

func (Log) Gradient(yTrue, yPred float64) float64 {
	y := 2*yTrue - 1
	z := yPred * y
	switch {
	case z > 18:
		return math.Exp(-z) * -y
	case z < -18:
		return -y
	default:
		return -y / (math.Exp(z) + 1)
	}
}

// Hinge 是 SVM 使用的合页损失，Threshold 默认为 1。
type Hinge struct{ Threshold float64 }

func (h Hinge) threshold() float64 {
	if h.Threshold == 0 {
		return 1
	}
	return h.Threshold
}

func (Hinge) Name() string { return "Hinge" }

func (h Hinge) Eval(yTrue, yPred float64) float64 {
	return math.Max(0, h.threshold()-(2*yTrue-1)*yPred)
}

func (h Hinge) Gradient(yTrue, yPred float64) float64 {
	y := 2*yTrue - 1
	if h.threshold()-y*yPred > 0 {
		return -y
	}
	return 0
}

// MultiClassLoss 是多分类损失，梯度按类别给出。
type MultiClassLoss interface {
	Name() string
	Eval(yTrue any, yPred core.Proba) float64
	Gradient(yTrue any, yPred core.Proba) map[any]float64
}

// CrossEntropy 是多分类交叉熵。未出现在 yPred 中的真实类别也会得到梯度（-1）。
type CrossEntropy struct{}

func (CrossEntropy) Name() string { return "CrossEntropy" }

func (CrossEntropy) Eval(yTrue any, yPred core.Proba) float64 {
	p := math.Max(1e-15, math.Min(1-1e-15, yPred[yTrue]))
	return -math.Log(p)
}

func (CrossEntropy) Gradient(yTrue any, yPred core.Proba) map[any]float64 {
	g := make(map[any]float64, len(yPred)+1)
	for label, p := range yPred {
		g[label] = p
	}
	g[yTrue] = yPred[yTrue] - 1
	return g
}

var (
	_ Loss           = Squared{}
	_ Loss           = Absolute{}
	_ Loss           = Log{}
	_ Loss           = Hinge{}
	_ MultiClassLoss = CrossEntropy{}
)

// NewLoss 根据名称构建损失函数，用于配置驱动。
func NewLoss(name string) (Loss, bool) {
	switch name {
	case "squared":
		return Squared{}, true
	case "absolute":
		return Absolute{}, true
	case "log":
		return Log{}, true
	case "hinge":
		return Hinge{}, true
	default:
		return nil, false
	}
}
