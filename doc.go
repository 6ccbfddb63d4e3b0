// Package flowml 是一个在线（流式）机器学习工具包。
//
// 设计要点：
// - Sample-at-a-time: 所有组件逐条样本学习与预测（LearnOne / PredictOne / TransformOne）
// - Pipeline-first: 变换器与最终模型通过 compose.Pipeline 串联，学习路径与预测路径分开更新
// - Progressive validation: evaluate 先预测后学习，并可模拟标签延迟揭晓（stream.SimulateQA）
package flowml

import (
	"github.com/rushteam/flowml/compose"
	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/metrics"
	"github.com/rushteam/flowml/stream"
)

// 轻量 facade：便于用户直接 import "flowml" 使用核心抽象。
type (
	Features   = core.Features
	Proba      = core.Proba
	Learner    = core.Learner
	Regressor  = core.Regressor
	Classifier = core.Classifier
	Pipeline   = compose.Pipeline
	Metric     = metrics.Metric
	Stream     = stream.Stream
	Sample     = stream.Sample
)

// NewPipeline 等同于 compose.NewPipeline。
func NewPipeline(components ...core.Estimator) (*Pipeline, error) {
	return compose.NewPipeline(components...)
}
