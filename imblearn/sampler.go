// Package imblearn 提供处理类别不平衡的在线采样器。
//
// 采样器包装一个分类器：学习时按目标分布对样本做欠采样/过采样，预测直接委托给被包装的分类器。
// 期望分布 desiredDist 的值必须为正，会被归一化；目标值不在 desiredDist 中时返回 INVALID_INPUT。
package imblearn

import (
	"fmt"
	"math/rand/v2"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/mathx"
)

// sampler 是三种采样器共享的部分。
type sampler struct {
	classifier core.Classifier
	desired    map[any]float64
	actual     map[any]float64
	n          int
	rng        *rand.Rand
}

func newSampler(clf core.Classifier, desiredDist map[any]float64, seed uint64) (sampler, error) {
	if clf == nil {
		return sampler{}, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "imblearn: classifier is required")
	}
	s := sampler{
		classifier: clf,
		actual:     make(map[any]float64),
		rng:        mathx.NewRand(seed),
	}
	if desiredDist == nil {
		return s, nil
	}
	total := 0.0
	for label, p := range desiredDist {
		if p <= 0 {
			return sampler{}, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("imblearn: desired proportion of %v must be positive, got %v", label, p))
		}
		total += p
	}
	if len(desiredDist) == 0 {
		return sampler{}, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "imblearn: empty desired distribution")
	}
	s.desired = make(map[any]float64, len(desiredDist))
	for label, p := range desiredDist {
		s.desired[label] = p / total
	}
	return s, nil
}

// observe 记录目标值并返回其期望比例。
func (s *sampler) observe(y any) (float64, error) {
	f, ok := s.desired[y]
	if !ok {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("imblearn: class %v is not in the desired distribution", y))
	}
	s.actual[y]++
	s.n++
	return f, nil
}

// pivot 返回 f/g 最大（largest=true）或最小的已见类别，并列时取 fmt 表示较小者。
func (s *sampler) pivot(largest bool) any {
	var (
		best      any
		bestRatio float64
		found     bool
	)
	for label, g := range s.actual {
		r := s.desired[label] / g
		better := (largest && r > bestRatio) || (!largest && r < bestRatio)
		if !found || better || (r == bestRatio && fmt.Sprint(label) < fmt.Sprint(best)) {
			best, bestRatio, found = label, r, true
		}
	}
	return best
}

func (s *sampler) learnTimes(x core.Features, y any, k int) error {
	for range k {
		if err := s.classifier.LearnOne(x, y); err != nil {
			return err
		}
	}
	return nil
}

func (s *sampler) PredictProbaOne(x core.Features) (core.Proba, error) {
	return s.classifier.PredictProbaOne(x)
}

// Unwrap 返回被包装的分类器。
func (s *sampler) Unwrap() core.Estimator { return s.classifier }

// RandomUnderSampler 随机欠采样：丢弃多数类样本，使学习到的类别分布接近 desiredDist。
//
// 以 f/g（期望比例/实际计数）最大的类别为基准 pivot，M = f[pivot]/g[pivot]，
// 样本以 f[y] / (M * g[y]) 的概率被学习。
type RandomUnderSampler struct {
	sampler
	pivotLabel any
	hasPivot   bool
}

// NewRandomUnderSampler 创建欠采样器。
func NewRandomUnderSampler(clf core.Classifier, desiredDist map[any]float64, seed uint64) (*RandomUnderSampler, error) {
	if desiredDist == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "imblearn: desired distribution is required")
	}
	s, err := newSampler(clf, desiredDist, seed)
	if err != nil {
		return nil, err
	}
	return &RandomUnderSampler{sampler: s}, nil
}

func (u *RandomUnderSampler) Name() string { return "RandomUnderSampler(" + u.classifier.Name() + ")" }

func (u *RandomUnderSampler) LearnOne(x core.Features, y any) error {
	f, err := u.observe(y)
	if err != nil {
		return err
	}
	if u.hasPivot && y == u.pivotLabel {
		return u.classifier.LearnOne(x, y)
	}
	u.pivotLabel, u.hasPivot = u.pivot(true), true

	m := u.desired[u.pivotLabel] / u.actual[u.pivotLabel]
	ratio := f / (m * u.actual[y])
	if ratio < 1 && u.rng.Float64() >= ratio {
		return nil
	}
	return u.classifier.LearnOne(x, y)
}

// RandomOverSampler 随机过采样：少数类样本被重复学习 k ~ Poisson(f[y] / (M * g[y])) 次，
// 其中 pivot 为 f/g 最小的类别。
type RandomOverSampler struct {
	sampler
	pivotLabel any
	hasPivot   bool
}

// NewRandomOverSampler 创建过采样器。
func NewRandomOverSampler(clf core.Classifier, desiredDist map[any]float64, seed uint64) (*RandomOverSampler, error) {
	if desiredDist == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "imblearn: desired distribution is required")
	}
	s, err := newSampler(clf, desiredDist, seed)
	if err != nil {
		return nil, err
	}
	return &RandomOverSampler{sampler: s}, nil
}

func (o *RandomOverSampler) Name() string { return "RandomOverSampler(" + o.classifier.Name() + ")" }

func (o *RandomOverSampler) LearnOne(x core.Features, y any) error {
	f, err := o.observe(y)
	if err != nil {
		return err
	}
	if o.hasPivot && y == o.pivotLabel {
		return o.classifier.LearnOne(x, y)
	}
	o.pivotLabel, o.hasPivot = o.pivot(false), true

	m := o.desired[o.pivotLabel] / o.actual[o.pivotLabel]
	rate := f / (m * o.actual[y])
	return o.learnTimes(x, y, mathx.Poisson(o.rng, rate))
}

// RandomSampler 同时做欠采样与过采样：样本被学习 k ~ Poisson(samplingRate * f[y] / (g[y] / n)) 次，
// g[y]/n 为目前为止的实际类别比例。samplingRate 控制期望的总学习次数占样本数的比例。
type RandomSampler struct {
	sampler
	SamplingRate float64
}

// NewRandomSampler 创建随机采样器；desiredDist 为 nil 时以实际分布为目标（即只按 samplingRate 采样）。
func NewRandomSampler(clf core.Classifier, desiredDist map[any]float64, samplingRate float64, seed uint64) (*RandomSampler, error) {
	if samplingRate <= 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("imblearn: sampling rate must be positive, got %v", samplingRate))
	}
	s, err := newSampler(clf, desiredDist, seed)
	if err != nil {
		return nil, err
	}
	return &RandomSampler{sampler: s, SamplingRate: samplingRate}, nil
}

func (r *RandomSampler) Name() string { return "RandomSampler(" + r.classifier.Name() + ")" }

func (r *RandomSampler) LearnOne(x core.Features, y any) error {
	var f float64
	if r.desired == nil {
		r.actual[y]++
		r.n++
		f = r.actual[y] / float64(r.n)
	} else {
		var err error
		if f, err = r.observe(y); err != nil {
			return err
		}
	}
	rate := r.SamplingRate * f / (r.actual[y] / float64(r.n))
	return r.learnTimes(x, y, mathx.Poisson(r.rng, rate))
}

var (
	_ core.Classifier = (*RandomUnderSampler)(nil)
	_ core.Classifier = (*RandomOverSampler)(nil)
	_ core.Classifier = (*RandomSampler)(nil)
	_ core.Wrapper    = (*RandomSampler)(nil)
)
