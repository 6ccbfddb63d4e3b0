// Package ensemble 提供在线集成模型。
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/mathx"
)

// bagging 是在线 bootstrap 聚合（Oza online bagging）：
// 每条样本对每个成员学习 k 次，k ~ Poisson(1)。
// k = 0 的概率约 36.8%，k = 1 约 36.8%，k = 2 约 18.4%，k = 3 约 6.1%。
type bagging[M core.Learner] struct {
	models []M
	rng    *rand.Rand
}

func newBagging[M core.Learner](factory func() M, n int, seed uint64) (bagging[M], error) {
	if factory == nil || n <= 0 {
		return bagging[M]{}, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("ensemble: need a model factory and a positive ensemble size, got %d", n))
	}
	models := make([]M, n)
	for i := range models {
		models[i] = factory()
	}
	return bagging[M]{models: models, rng: mathx.NewRand(seed)}, nil
}

func (b *bagging[M]) LearnOne(x core.Features, y any) error {
	for _, m := range b.models {
		for range mathx.Poisson(b.rng, 1) {
			if err := m.LearnOne(x, y); err != nil {
				return err
			}
		}
	}
	return nil
}

// Models 返回集成成员。
func (b *bagging[M]) Models() []M { return b.models }

func (b *bagging[M]) name(kind string) string {
	if len(b.models) == 0 {
		return kind
	}
	return fmt.Sprintf("%s(%s)", kind, b.models[0].Name())
}

// BaggingClassifier 在线 bagging 分类器，预测为各成员概率之和归一化后的分布。
type BaggingClassifier struct {
	bagging[core.Classifier]
}

// NewBaggingClassifier 用 factory 创建 n 个相互独立的成员。
func NewBaggingClassifier(factory func() core.Classifier, n int, seed uint64) (*BaggingClassifier, error) {
	b, err := newBagging(factory, n, seed)
	if err != nil {
		return nil, err
	}
	return &BaggingClassifier{bagging: b}, nil
}

func (c *BaggingClassifier) Name() string { return c.name("BaggingClassifier") }

func (c *BaggingClassifier) PredictProbaOne(x core.Features) (core.Proba, error) {
	sum := make(core.Proba)
	for _, m := range c.models {
		p, err := m.PredictProbaOne(x)
		if err != nil {
			return nil, err
		}
		for label, v := range p {
			sum[label] += v
		}
	}
	return sum.Normalize(), nil
}

// BaggingRegressor 在线 bagging 回归器，预测为各成员预测的均值。
type BaggingRegressor struct {
	bagging[core.Regressor]
}

// NewBaggingRegressor 用 factory 创建 n 个相互独立的成员。
func NewBaggingRegressor(factory func() core.Regressor, n int, seed uint64) (*BaggingRegressor, error) {
	b, err := newBagging(factory, n, seed)
	if err != nil {
		return nil, err
	}
	return &BaggingRegressor{bagging: b}, nil
}

func (r *BaggingRegressor) Name() string { return r.name("BaggingRegressor") }

func (r *BaggingRegressor) PredictOne(x core.Features) (float64, error) {
	sum := 0.0
	for _, m := range r.models {
		p, err := m.PredictOne(x)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(r.models)), nil
}

var (
	_ core.Classifier = (*BaggingClassifier)(nil)
	_ core.Regressor  = (*BaggingRegressor)(nil)
)
