// Package model 提供在线线性模型：线性回归、逻辑回归与 softmax 回归。
//
// 所有模型逐条样本学习（LearnOne），只使用数值特征，非数值特征被忽略；
// 类别特征应先经过 preprocessing.OneHotEncoder 等变换。
package model

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/mathx"
)

// linear 是线性回归与逻辑回归共享的参数与学习逻辑。
type linear struct {
	Optimizer   optim.Optimizer
	Loss        optim.Loss
	L2          float64 // L2 正则系数
	InterceptLR float64 // 截距学习率，0 表示不学习截距
	ClipGrad    float64 // 损失梯度的绝对值上限

	Bias    float64            // 偏置项 (Bias / Intercept)
	Weights map[string]float64 // 特征权重 (Weights / Coefficients)
}

func newLinear(opt optim.Optimizer, loss optim.Loss) linear {
	if opt == nil {
		opt = optim.NewSGD(0.01)
	}
	return linear{
		Optimizer:   opt,
		Loss:        loss,
		InterceptLR: 0.01,
		ClipGrad:    1e12,
		Weights:     make(map[string]float64),
	}
}

func (m *linear) raw(x map[string]float64) float64 {
	return m.Bias + mathx.Dot(m.Weights, x)
}

func (m *linear) learn(x map[string]float64, y float64) {
	m.Optimizer.UpdateBeforePred(m.Weights)

	gLoss := m.Loss.Gradient(y, m.raw(x))
	gLoss = mathx.Clamp(gLoss, -m.ClipGrad, m.ClipGrad)

	grad := make(map[string]float64, len(x))
	for i, xi := range x {
		grad[i] = xi*gLoss + m.L2*m.Weights[i]
	}
	m.Weights = m.Optimizer.UpdateAfterPred(m.Weights, grad)
	m.Bias -= m.InterceptLR * gLoss
}

// linearState 是线性模型的 JSON 快照格式。
type linearState struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

func (m *linear) MarshalState() ([]byte, error) {
	return json.Marshal(linearState{Bias: m.Bias, Weights: m.Weights})
}

func (m *linear) UnmarshalState(data []byte) error {
	var raw linearState
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Weights == nil {
		raw.Weights = make(map[string]float64)
	}
	m.Bias, m.Weights = raw.Bias, raw.Weights
	return nil
}

func readState(path string, into interface{ UnmarshalState([]byte) error }) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return into.UnmarshalState(data)
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
