// Package dsl 是基于 CEL (Common Expression Language) 的特征表达式解释器，
// 供 compose.Expr（派生特征）与 stream.Filter（过滤样本）使用。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("x", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("y", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的表达式，可对任意多条样本重复求值。
//
// 表达式语法（CEL 标准语法）：
//   - 特征：x.price > 10 / x["user id"] == "u1"
//   - 目标：y == true / y > 3.5（无目标时 y 为 null）
//   - 存在性：has(x.price)
//   - 算术：x.price * x.qty
//   - 时间：x.date > timestamp("2020-01-01T00:00:00Z")
//
// 注意：访问不存在的 key 会返回求值错误，应先用 has(x.key) 判断。
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式；语法或类型错误会立即返回。
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return nil, fmt.Errorf("dsl: empty expression")
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	return &Expr{src: expr, prg: prg}, nil
}

// MustCompile 同 Compile，出错时 panic，适用于包级变量初始化。
func MustCompile(expr string) *Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string { return e.src }

// Eval 以特征 x 与目标 y 求值，返回 CEL 结果的 Go 原生值。
func (e *Expr) Eval(x core.Features, y any) (any, error) {
	if x == nil {
		x = core.Features{}
	}
	out, _, err := e.prg.Eval(map[string]any{
		"x": map[string]any(x),
		"y": y,
	})
	if err != nil {
		return nil, fmt.Errorf("dsl: eval %q: %w", e.src, err)
	}
	return out.Value(), nil
}

// EvalBool 求值并要求结果为布尔值。
func (e *Expr) EvalBool(x core.Features, y any) (bool, error) {
	v, err := e.Eval(x, y)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return boolean, got %T", e.src, v)
	}
	return b, nil
}

// EvalFloat 求值并要求结果为数值。
func (e *Expr) EvalFloat(x core.Features, y any) (float64, error) {
	v, err := e.Eval(x, y)
	if err != nil {
		return 0, err
	}
	f, ok := conv.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("dsl: expression %q must return a number, got %T", e.src, v)
	}
	return f, nil
}
