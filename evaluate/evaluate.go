// Package evaluate 实现渐进式验证：对数据流中的每条样本先预测、再在标签揭晓后学习，
// 预测结果与揭晓的标签一起更新指标。
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/metrics"
	"github.com/rushteam/flowml/stream"
)

// Result 是一次渐进式验证的结果。
type Result struct {
	// Name 模型名称（CompareModels 中为 Candidate.Name）
	Name string
	// Metric 评估结束时的指标
	Metric metrics.Metric
	// N 已揭晓并学习的样本数
	N int
	// Elapsed 总耗时
	Elapsed time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("%s - %s (n=%d, %s)", r.Name, r.Metric, r.N, r.Elapsed.Round(time.Millisecond))
}

type options struct {
	moment     stream.Moment
	delay      stream.Delay
	printEvery int
	logger     *zap.Logger
	// CompareModels 的最大并发数，0 表示不限制
	maxConcurrent int
}

// Option 渐进式验证配置选项
type Option func(*options)

// WithMoment 设置样本时刻，默认按到达顺序。
func WithMoment(m stream.Moment) Option {
	return func(o *options) { o.moment = m }
}

// WithDelay 设置标签揭晓延迟，默认立即揭晓。
func WithDelay(d stream.Delay) Option {
	return func(o *options) { o.delay = d }
}

// WithPrintEvery 每揭晓 n 个标签记录一次进度日志。
func WithPrintEvery(n int) Option {
	return func(o *options) { o.printEvery = n }
}

// WithLogger 设置日志，默认 zap.NewNop()。
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxConcurrent 限制 CompareModels 同时评估的模型数。
func WithMaxConcurrent(n int) Option {
	return func(o *options) { o.maxConcurrent = n }
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// predictor 根据模型类型选择预测方式：分类器输出 core.Proba，回归器输出 float64。
func predictor(model core.Learner) (func(core.Features) (any, bool, error), error) {
	switch {
	case core.IsClassifier(model):
		clf, ok := model.(core.Classifier)
		if !ok {
			break
		}
		return func(x core.Features) (any, bool, error) {
			p, err := clf.PredictProbaOne(x)
			// 尚未见过任何类别时没有可评估的预测
			return p, len(p) > 0, err
		}, nil
	case core.IsRegressor(model):
		reg, ok := model.(core.Regressor)
		if !ok {
			break
		}
		return func(x core.Features) (any, bool, error) {
			v, err := reg.PredictOne(x)
			return v, true, err
		}, nil
	}
	return nil, core.NewDomainError(core.ModuleEvaluate, core.ErrorCodeInvalidInput,
		fmt.Sprintf("evaluate: %s is neither a regressor nor a classifier", model.Name()))
}

type prediction struct {
	value any
	ok    bool
}

// ProgressiveValScore 对 s 做渐进式验证并返回指标。
//
// 每个提问事件先预测并暂存结果；每个揭晓事件用暂存的预测更新指标，然后让模型学习该样本。
// 因此模型永远不会在预测某条样本之前学到它的标签。
func ProgressiveValScore(ctx context.Context, s stream.Stream, model core.Learner, metric metrics.Metric, opts ...Option) (Result, error) {
	o := newOptions(opts)
	res := Result{Name: model.Name(), Metric: metric}
	if !metric.WorksWith(model) {
		return res, core.NewDomainError(core.ModuleEvaluate, core.ErrorCodeInvalidInput,
			fmt.Sprintf("evaluate: metric %s does not work with %s", metric.Name(), model.Name()))
	}
	predict, err := predictor(model)
	if err != nil {
		return res, err
	}

	start := time.Now()
	finish := func(err error) (Result, error) {
		res.Elapsed = time.Since(start)
		return res, err
	}

	qa := stream.SimulateQA(s, o.moment, o.delay)
	preds := make(map[int]prediction)
	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		e, err := qa.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(err)
		}

		if !e.Answer {
			v, ok, err := predict(e.X)
			if err != nil {
				return finish(fmt.Errorf("evaluate: predict sample %d: %w", e.Index, err))
			}
			preds[e.Index] = prediction{value: v, ok: ok}
			continue
		}

		pred := preds[e.Index]
		delete(preds, e.Index)
		if pred.ok {
			if err := metric.Update(e.Y, pred.value, 1); err != nil {
				return finish(fmt.Errorf("evaluate: update metric at sample %d: %w", e.Index, err))
			}
		}
		if err := model.LearnOne(e.X, e.Y); err != nil {
			return finish(fmt.Errorf("evaluate: learn sample %d: %w", e.Index, err))
		}
		res.N++

		if o.printEvery > 0 && res.N%o.printEvery == 0 {
			o.logger.Info("progressive validation",
				zap.String("model", res.Name),
				zap.Int("n", res.N),
				zap.String("metric", metric.String()),
				zap.Duration("elapsed", time.Since(start)))
		}
	}

	o.logger.Debug("progressive validation done",
		zap.String("model", res.Name),
		zap.Int("n", res.N),
		zap.String("metric", metric.String()))
	return finish(nil)
}
