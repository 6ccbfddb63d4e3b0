package compose

import (
	"fmt"
	"maps"
	"strings"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/dsl"
)

// FuncTransformer 用一个无状态函数变换 x。
type FuncTransformer struct {
	Label string
	Func  func(x core.Features) (core.Features, error)
}

func (f *FuncTransformer) Name() string {
	if f.Label == "" {
		return "FuncTransformer"
	}
	return f.Label
}

func (f *FuncTransformer) LearnOne(core.Features) error { return nil }

func (f *FuncTransformer) TransformOne(x core.Features) (core.Features, error) {
	return f.Func(x)
}

// Renamer 按映射重命名特征，映射中不存在的特征保持原名。
type Renamer struct {
	Mapping map[string]string
}

func (r *Renamer) Name() string { return "Renamer" }

func (r *Renamer) LearnOne(core.Features) error { return nil }

func (r *Renamer) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		if to, ok := r.Mapping[k]; ok {
			k = to
		}
		out[k] = v
	}
	return out, nil
}

// Prefixer 给所有特征名加前缀。
type Prefixer struct {
	Prefix string
}

func (p *Prefixer) Name() string { return "Prefixer(" + p.Prefix + ")" }

func (p *Prefixer) LearnOne(core.Features) error { return nil }

func (p *Prefixer) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(x))
	for k, v := range x {
		out[p.Prefix+k] = v
	}
	return out, nil
}

// Select 只保留指定特征。
type Select struct {
	Keys []string
}

func NewSelect(keys ...string) *Select { return &Select{Keys: keys} }

func (s *Select) Name() string { return "Select(" + strings.Join(s.Keys, ", ") + ")" }

func (s *Select) LearnOne(core.Features) error { return nil }

func (s *Select) TransformOne(x core.Features) (core.Features, error) {
	out := make(core.Features, len(s.Keys))
	for _, k := range s.Keys {
		if v, ok := x[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Discard 移除指定特征。
type Discard struct {
	Keys []string
}

func NewDiscard(keys ...string) *Discard { return &Discard{Keys: keys} }

func (d *Discard) Name() string { return "Discard(" + strings.Join(d.Keys, ", ") + ")" }

func (d *Discard) LearnOne(core.Features) error { return nil }

func (d *Discard) TransformOne(x core.Features) (core.Features, error) {
	out := maps.Clone(x)
	if out == nil {
		out = core.Features{}
	}
	for _, k := range d.Keys {
		delete(out, k)
	}
	return out, nil
}

// Expr 用 CEL 表达式派生一个新特征，例如 Expr{Feature: "total", Expr: dsl.MustCompile("x.price * x.qty")}。
type Expr struct {
	Feature string
	Expr    *dsl.Expr
}

// NewExpr 编译表达式并创建派生特征变换器。
func NewExpr(feature, expr string) (*Expr, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Expr{Feature: feature, Expr: e}, nil
}

func (e *Expr) Name() string { return fmt.Sprintf("Expr(%s = %s)", e.Feature, e.Expr) }

func (e *Expr) LearnOne(core.Features) error { return nil }

func (e *Expr) TransformOne(x core.Features) (core.Features, error) {
	v, err := e.Expr.Eval(x, nil)
	if err != nil {
		return nil, err
	}
	out := x.Clone()
	out[e.Feature] = v
	return out, nil
}

var (
	_ core.Transformer = (*FuncTransformer)(nil)
	_ core.Transformer = (*Renamer)(nil)
	_ core.Transformer = (*Prefixer)(nil)
	_ core.Transformer = (*Select)(nil)
	_ core.Transformer = (*Discard)(nil)
	_ core.Transformer = (*Expr)(nil)
)
