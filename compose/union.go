package compose

import (
	"fmt"
	"strings"

	"github.com/rushteam/flowml/core"
)

// TransformerUnion 对同一个 x 运行多个变换器并合并输出；key 冲突时后面的变换器覆盖前面的。
type TransformerUnion struct {
	steps []Step
}

// NewTransformerUnion 创建变换器并集。
func NewTransformerUnion(steps ...Step) *TransformerUnion {
	return &TransformerUnion{steps: steps}
}

func (u *TransformerUnion) Name() string {
	names := make([]string, len(u.steps))
	for i, s := range u.steps {
		names[i] = s.Name()
	}
	return strings.Join(names, " + ")
}

// LearnOne 单独使用时更新全部成员（有监督与无监督）。
func (u *TransformerUnion) LearnOne(x core.Features, y any) error {
	if _, err := u.transform(x, true); err != nil {
		return err
	}
	return u.learnSupervised(x, y)
}

// TransformOne 只做变换，不更新任何成员。
func (u *TransformerUnion) TransformOne(x core.Features) (core.Features, error) {
	return u.transform(x, false)
}

func (u *TransformerUnion) transform(x core.Features, updateUnsupervised bool) (core.Features, error) {
	out := make(core.Features)
	for _, s := range u.steps {
		part, err := transformStep(s, x, updateUnsupervised)
		if err != nil {
			return nil, fmt.Errorf("union: %w", err)
		}
		for k, v := range part {
			out[k] = v
		}
	}
	return out, nil
}

func (u *TransformerUnion) learnSupervised(x core.Features, y any) error {
	for _, s := range u.steps {
		if err := learnSupervisedStep(s, x, y); err != nil {
			return fmt.Errorf("union: %w", err)
		}
	}
	return nil
}

var _ core.SupervisedTransformer = (*TransformerUnion)(nil)

// Close 关闭实现了 io.Closer 的成员。
func (u *TransformerUnion) Close() error {
	components := make([]core.Estimator, len(u.steps))
	for i, s := range u.steps {
		components[i] = s
	}
	return closeAll(components)
}
