package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/mathx"
)

// SoftmaxRegression 是逻辑回归在多分类上的推广（multinomial logistic regression）。
//
// 每个类别有一组独立的权重与优化器（由模板优化器 Clone 得到），
// 相比 one-vs-rest 的逻辑回归，输出的概率是校准过的。
type SoftmaxRegression struct {
	Optimizer optim.Optimizer // 模板优化器，每个新类别 Clone 一份
	Loss      optim.MultiClassLoss
	L2        float64

	weights    map[any]map[string]float64
	optimizers map[any]optim.Optimizer
}

func NewSoftmaxRegression(opt optim.Optimizer) *SoftmaxRegression {
	if opt == nil {
		opt = optim.NewSGD(0.01)
	}
	return &SoftmaxRegression{
		Optimizer:  opt,
		Loss:       optim.CrossEntropy{},
		weights:    make(map[any]map[string]float64),
		optimizers: make(map[any]optim.Optimizer),
	}
}

func (m *SoftmaxRegression) Name() string { return "SoftmaxRegression" }

func (m *SoftmaxRegression) optimizer(label any) optim.Optimizer {
	o, ok := m.optimizers[label]
	if !ok {
		o = m.Optimizer.Clone()
		m.optimizers[label] = o
	}
	return o
}

func (m *SoftmaxRegression) LearnOne(x core.Features, y any) error {
	numeric := x.Numeric()

	for label, w := range m.weights {
		m.optimizer(label).UpdateBeforePred(w)
	}

	proba := m.predict(numeric)
	for label, gLoss := range m.Loss.Gradient(y, proba) {
		w, ok := m.weights[label]
		if !ok {
			w = make(map[string]float64)
		}
		grad := make(map[string]float64, len(numeric))
		for i, xi := range numeric {
			grad[i] = xi*gLoss + m.L2*w[i]
		}
		m.weights[label] = m.optimizer(label).UpdateAfterPred(w, grad)
	}
	return nil
}

func (m *SoftmaxRegression) predict(x map[string]float64) core.Proba {
	scores := make(map[any]float64, len(m.weights))
	for label, w := range m.weights {
		scores[label] = mathx.Dot(w, x)
	}
	return core.Proba(mathx.Softmax(scores))
}

func (m *SoftmaxRegression) PredictProbaOne(x core.Features) (core.Proba, error) {
	return m.predict(x.Numeric()), nil
}

// Classes 返回已见过的类别数。
func (m *SoftmaxRegression) Classes() int { return len(m.weights) }

// softmaxState 是 SoftmaxRegression 的 JSON 快照格式。
// JSON 的 key 只能是字符串，LabelType 记录类别的原始类型（bool / int / float / string）以便还原。
type softmaxState struct {
	LabelType string                        `json:"label_type"`
	Weights   map[string]map[string]float64 `json:"weights"`
}

func labelType(label any) (string, bool) {
	switch label.(type) {
	case string:
		return "string", true
	case bool:
		return "bool", true
	case int:
		return "int", true
	case float64:
		return "float", true
	default:
		return "", false
	}
}

func parseLabel(s, typ string) (any, error) {
	switch typ {
	case "", "string":
		return s, nil
	case "bool":
		return strconv.ParseBool(s)
	case "int":
		return strconv.Atoi(s)
	case "float":
		return strconv.ParseFloat(s, 64)
	default:
		return nil, fmt.Errorf("unknown label_type %q", typ)
	}
}

// MarshalState 输出各类别的权重；所有类别须为同一种类型（string、bool、int 或 float64）。
// 优化器状态不在快照内。
func (m *SoftmaxRegression) MarshalState() ([]byte, error) {
	state := softmaxState{Weights: make(map[string]map[string]float64, len(m.weights))}
	for label, w := range m.weights {
		typ, ok := labelType(label)
		if !ok || (state.LabelType != "" && typ != state.LabelType) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
				fmt.Sprintf("model: cannot snapshot class %v of type %T", label, label))
		}
		state.LabelType = typ
		state.Weights[fmt.Sprint(label)] = w
	}
	return json.Marshal(state)
}

func (m *SoftmaxRegression) UnmarshalState(data []byte) error {
	var raw softmaxState
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weights := make(map[any]map[string]float64, len(raw.Weights))
	for key, w := range raw.Weights {
		label, err := parseLabel(key, raw.LabelType)
		if err != nil {
			return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("model: class %q: %v", key, err))
		}
		if w == nil {
			w = make(map[string]float64)
		}
		weights[label] = w
	}
	m.weights = weights
	m.optimizers = make(map[any]optim.Optimizer)
	return nil
}

// LoadSoftmaxRegression 从 JSON 快照文件加载 softmax 回归模型。
func LoadSoftmaxRegression(path string, opt optim.Optimizer) (*SoftmaxRegression, error) {
	m := NewSoftmaxRegression(opt)
	if err := readState(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	_ core.Classifier  = (*SoftmaxRegression)(nil)
	_ core.Snapshotter = (*SoftmaxRegression)(nil)
)
