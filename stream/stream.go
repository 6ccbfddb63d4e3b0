// Package stream 提供逐条产出样本的数据流，以及打乱、过滤、截断和延迟标签模拟等工具。
//
// 所有数据流都是拉取式的：调用 Next 获取下一条样本，返回 io.EOF 表示结束。
// 数据流不是并发安全的。
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/dsl"
	"github.com/rushteam/flowml/pkg/mathx"
)

// Sample 是一条样本；Y 为 nil 表示没有目标值。
type Sample struct {
	X core.Features
	Y any
}

// Stream 是样本流。
type Stream interface {
	Next(ctx context.Context) (Sample, error)
}

// Func 把函数适配为 Stream。
type Func func(ctx context.Context) (Sample, error)

func (f Func) Next(ctx context.Context) (Sample, error) { return f(ctx) }

// Factory 每次调用返回一个全新的、从头开始的数据流，用于多次遍历同一份数据。
type Factory func() (Stream, error)

// ErrLengthMismatch 表示特征与目标数量不一致。
var ErrLengthMismatch = core.NewDomainError(core.ModuleStream, core.ErrorCodeInvalidInput, "stream: features and targets have different lengths")

// FromSlice 按顺序产出 samples。
func FromSlice(samples []Sample) Stream {
	i := 0
	return Func(func(ctx context.Context) (Sample, error) {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		if i >= len(samples) {
			return Sample{}, io.EOF
		}
		s := samples[i]
		i++
		return s, nil
	})
}

// IterArray 把二维数组按行转为样本。names 为空时特征名为列下标；y 为 nil 时不产出目标值。
func IterArray(X [][]float64, y []any, names []string) (Stream, error) {
	if y != nil && len(y) != len(X) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrLengthMismatch, len(X), len(y))
	}
	samples := make([]Sample, len(X))
	for i, row := range X {
		x := make(core.Features, len(row))
		for j, v := range row {
			name := fmt.Sprint(j)
			if j < len(names) {
				name = names[j]
			}
			x[name] = v
		}
		samples[i].X = x
		if y != nil {
			samples[i].Y = y[i]
		}
	}
	return FromSlice(samples), nil
}

// Collect 读取数据流直到结束。
func Collect(ctx context.Context, s Stream) ([]Sample, error) {
	var out []Sample
	for {
		sample, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, sample)
	}
}

// Take 只产出前 n 条样本。
func Take(s Stream, n int) Stream {
	seen := 0
	return Func(func(ctx context.Context) (Sample, error) {
		if seen >= n {
			return Sample{}, io.EOF
		}
		sample, err := s.Next(ctx)
		if err != nil {
			return Sample{}, err
		}
		seen++
		return sample, nil
	})
}

// Filter 只产出满足 CEL 谓词的样本，谓词中可以引用 x 与 y，例如 `x.age > 18 && y == true`。
func Filter(s Stream, pred *dsl.Expr) Stream {
	return Func(func(ctx context.Context) (Sample, error) {
		for {
			sample, err := s.Next(ctx)
			if err != nil {
				return Sample{}, err
			}
			ok, err := pred.EvalBool(sample.X, sample.Y)
			if err != nil {
				return Sample{}, fmt.Errorf("stream: filter %q: %w", pred.String(), err)
			}
			if ok {
				return sample, nil
			}
		}
	})
}

// Shuffle 用大小为 buffer 的缓冲区近似打乱数据流：缓冲区满后，每读入一条就随机吐出缓冲区中的一条，
// 数据流结束后把剩余样本打乱输出。buffer 越大越接近完全打乱。
func Shuffle(s Stream, buffer int, seed uint64) Stream {
	return &shuffled{src: s, size: max(buffer, 1), rng: mathx.NewRand(seed)}
}

type shuffled struct {
	src     Stream
	size    int
	rng     *rand.Rand
	buf     []Sample
	drained bool
}

func (s *shuffled) Next(ctx context.Context) (Sample, error) {
	for !s.drained {
		sample, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.drained = true
			s.rng.Shuffle(len(s.buf), func(i, j int) { s.buf[i], s.buf[j] = s.buf[j], s.buf[i] })
			break
		}
		if err != nil {
			return Sample{}, err
		}
		if len(s.buf) < s.size {
			s.buf = append(s.buf, sample)
			continue
		}
		i := s.rng.IntN(s.size)
		out := s.buf[i]
		s.buf[i] = sample
		return out, nil
	}
	if len(s.buf) == 0 {
		return Sample{}, io.EOF
	}
	out := s.buf[len(s.buf)-1]
	s.buf = s.buf[:len(s.buf)-1]
	return out, nil
}
