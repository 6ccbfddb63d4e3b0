package evaluate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/metrics"
	"github.com/rushteam/flowml/stream"
)

// Candidate 是参与比较的一组 (模型, 指标)。模型与指标都不能在多个 Candidate 之间共享。
type Candidate struct {
	Name   string
	Model  core.Learner
	Metric metrics.Metric
}

// CompareModels 并发地对每个候选模型做渐进式验证，每个模型使用 factory 新建的独立数据流。
// 结果顺序与 candidates 一致；任一模型出错时取消其余评估并返回该错误。
func CompareModels(ctx context.Context, factory stream.Factory, candidates []Candidate, opts ...Option) ([]Result, error) {
	if factory == nil {
		return nil, core.NewDomainError(core.ModuleEvaluate, core.ErrorCodeInvalidInput, "evaluate: stream factory is required")
	}
	o := newOptions(opts)
	results := make([]Result, len(candidates))

	eg, egCtx := errgroup.WithContext(ctx)
	if o.maxConcurrent > 0 {
		eg.SetLimit(o.maxConcurrent)
	}
	for i, c := range candidates {
		eg.Go(func() error {
			s, err := factory()
			if err != nil {
				return fmt.Errorf("evaluate: open stream for %s: %w", c.Name, err)
			}
			res, err := ProgressiveValScore(egCtx, s, c.Model, c.Metric, opts...)
			if err != nil {
				return fmt.Errorf("evaluate: %s: %w", c.Name, err)
			}
			if c.Name != "" {
				res.Name = c.Name
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Best 返回指标最优的结果下标；并列时取靠前者，results 为空时返回 -1。
func Best(results []Result) int {
	best := -1
	for i, r := range results {
		if best < 0 {
			best = i
			continue
		}
		cur, top := r.Metric.Get(), results[best].Metric.Get()
		if r.Metric.BiggerIsBetter() && cur > top || !r.Metric.BiggerIsBetter() && cur < top {
			best = i
		}
	}
	return best
}
