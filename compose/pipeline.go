// Package compose 把变换器与模型组合成流水线。
//
// 学习路径：每个变换器依次变换 x；有监督变换器用变换前的 x 与 y 更新，无监督变换器不更新。
// 预测路径：无监督变换器先用 x 更新，再变换 x。
// 这样无监督统计量（例如标准化的均值方差）在预测时就已包含当前样本，而学习时不会重复计入。
package compose

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rushteam/flowml/core"
)

// Step 是流水线中的变换步骤：core.Transformer、core.SupervisedTransformer 或本包的复合组件。
type Step interface {
	core.Estimator
	TransformOne(x core.Features) (core.Features, error)
}

// composite 由本包的复合组件实现，区分学习路径与预测路径上的行为。
type composite interface {
	// transform 变换 x；updateUnsupervised 为 true 时先更新其中的无监督部分。
	transform(x core.Features, updateUnsupervised bool) (core.Features, error)
	// learnSupervised 用变换前的 x 与 y 更新其中的有监督部分。
	learnSupervised(x core.Features, y any) error
}

// Pipeline 是若干变换步骤加一个可选的最终模型。
//
// Pipeline 同时实现 core.Regressor 与 core.Classifier：
// 最终模型类型不符时，PredictOne / PredictProbaOne 返回 NOT_SUPPORTED 错误。
// 没有最终模型时 Pipeline 本身就是一个（有监督）变换器。
type Pipeline struct {
	steps []Step
	final core.Learner
}

// NewPipeline 创建流水线。最后一个组件若是 Regressor 或 Classifier 则作为最终模型，
// 其余组件必须是变换器。
func NewPipeline(components ...core.Estimator) (*Pipeline, error) {
	if len(components) == 0 {
		return nil, core.NewDomainError(core.ModuleCompose, core.ErrorCodeInvalidInput, "compose: empty pipeline")
	}
	p := &Pipeline{}
	for i, c := range components {
		if c == nil {
			return nil, core.NewDomainError(core.ModuleCompose, core.ErrorCodeInvalidInput,
				fmt.Sprintf("compose: step %d is nil", i))
		}
		if i == len(components)-1 && isModel(c) {
			p.final = c.(core.Learner)
			break
		}
		s, ok := c.(Step)
		if !ok {
			return nil, core.NewDomainError(core.ModuleCompose, core.ErrorCodeInvalidInput,
				fmt.Sprintf("compose: step %d (%s) is not a transformer", i, c.Name()))
		}
		p.steps = append(p.steps, s)
	}
	return p, nil
}

// MustPipeline 同 NewPipeline，出错时 panic。
func MustPipeline(components ...core.Estimator) *Pipeline {
	p, err := NewPipeline(components...)
	if err != nil {
		panic(err)
	}
	return p
}

func isModel(e core.Estimator) bool {
	return core.IsRegressor(e) || core.IsClassifier(e)
}

// Steps 返回变换步骤（不含最终模型）。
func (p *Pipeline) Steps() []Step { return p.steps }

// Unwrap 返回最终模型，没有时返回 nil。
func (p *Pipeline) Unwrap() core.Estimator {
	if p.final == nil {
		return nil
	}
	return p.final
}

// String 返回 "A | B | C" 形式的描述。
func (p *Pipeline) String() string {
	names := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		names = append(names, s.Name())
	}
	if p.final != nil {
		names = append(names, p.final.Name())
	}
	return strings.Join(names, " | ")
}

func (p *Pipeline) Name() string { return p.String() }

// LearnOne 沿学习路径变换 x，并更新有监督变换器与最终模型。
func (p *Pipeline) LearnOne(x core.Features, y any) error {
	x, err := p.learnSteps(x, y)
	if err != nil {
		return err
	}
	if p.final != nil {
		if err := p.final.LearnOne(x, y); err != nil {
			return fmt.Errorf("compose: learn %s: %w", p.final.Name(), err)
		}
	}
	return nil
}

// TransformOne 沿预测路径变换 x（会更新无监督变换器），不经过最终模型。
func (p *Pipeline) TransformOne(x core.Features) (core.Features, error) {
	return p.transform(x, true)
}

// PredictOne 沿预测路径变换 x 后交给最终回归器。
func (p *Pipeline) PredictOne(x core.Features) (float64, error) {
	reg, ok := p.final.(core.Regressor)
	if !ok {
		return 0, core.ErrNotRegressor
	}
	x, err := p.transform(x, true)
	if err != nil {
		return 0, err
	}
	return reg.PredictOne(x)
}

// PredictProbaOne 沿预测路径变换 x 后交给最终分类器。
func (p *Pipeline) PredictProbaOne(x core.Features) (core.Proba, error) {
	clf, ok := p.final.(core.Classifier)
	if !ok {
		return nil, core.ErrNotClassifier
	}
	x, err := p.transform(x, true)
	if err != nil {
		return nil, err
	}
	return clf.PredictProbaOne(x)
}

func (p *Pipeline) learnSteps(x core.Features, y any) (core.Features, error) {
	for _, s := range p.steps {
		pre := x
		out, err := transformStep(s, x, false)
		if err != nil {
			return nil, err
		}
		if err := learnSupervisedStep(s, pre, y); err != nil {
			return nil, err
		}
		x = out
	}
	return x, nil
}

func (p *Pipeline) transform(x core.Features, updateUnsupervised bool) (core.Features, error) {
	for _, s := range p.steps {
		out, err := transformStep(s, x, updateUnsupervised)
		if err != nil {
			return nil, err
		}
		x = out
	}
	return x, nil
}

func (p *Pipeline) learnSupervised(x core.Features, y any) error {
	_, err := p.learnSteps(x, y)
	return err
}

// Close 关闭实现了 io.Closer 的步骤与最终模型（例如持有 Feast 连接的特征富化步骤）。
func (p *Pipeline) Close() error {
	components := make([]core.Estimator, 0, len(p.steps)+1)
	for _, s := range p.steps {
		components = append(components, s)
	}
	if p.final != nil {
		components = append(components, p.final)
	}
	return closeAll(components)
}

func closeAll(components []core.Estimator) error {
	var errs []error
	for _, c := range components {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

func transformStep(s Step, x core.Features, updateUnsupervised bool) (core.Features, error) {
	if c, ok := s.(composite); ok {
		return c.transform(x, updateUnsupervised)
	}
	if updateUnsupervised {
		if t, ok := s.(core.Transformer); ok {
			if err := t.LearnOne(x); err != nil {
				return nil, fmt.Errorf("compose: learn %s: %w", s.Name(), err)
			}
		}
	}
	out, err := s.TransformOne(x)
	if err != nil {
		return nil, fmt.Errorf("compose: transform %s: %w", s.Name(), err)
	}
	return out, nil
}

func learnSupervisedStep(s Step, x core.Features, y any) error {
	if c, ok := s.(composite); ok {
		return c.learnSupervised(x, y)
	}
	if t, ok := s.(core.SupervisedTransformer); ok {
		if err := t.LearnOne(x, y); err != nil {
			return fmt.Errorf("compose: learn %s: %w", s.Name(), err)
		}
	}
	return nil
}

var (
	_ core.Regressor             = (*Pipeline)(nil)
	_ core.Classifier            = (*Pipeline)(nil)
	_ core.SupervisedTransformer = (*Pipeline)(nil)
	_ core.Wrapper               = (*Pipeline)(nil)
)
