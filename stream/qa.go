package stream

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
)

// Event 是 SimulateQA 产出的事件：提问时 Answer 为 false、Y 为 nil；揭晓时 Answer 为 true。
type Event struct {
	Index  int
	X      core.Features
	Y      any
	Answer bool
}

// Moment 返回第 i 条样本发生的时刻（秒）。
type Moment func(i int, x core.Features) (float64, error)

// Delay 返回样本的标签在多少秒后揭晓。
type Delay func(x core.Features, y any) (float64, error)

// ByIndex 以到达顺序作为时刻。
func ByIndex() Moment {
	return func(i int, _ core.Features) (float64, error) { return float64(i), nil }
}

// ByFeature 以特征值作为时刻，特征可以是数值或 time.Time（转换为 Unix 秒）。
func ByFeature(name string) Moment {
	return func(_ int, x core.Features) (float64, error) {
		t, ok := conv.ToSeconds(x[name])
		if !ok {
			return 0, invalidField("moment", name, x[name])
		}
		return t, nil
	}
}

// NoDelay 立即揭晓标签，即普通的渐进式验证。
func NoDelay() Delay {
	return func(core.Features, any) (float64, error) { return 0, nil }
}

// ConstantDelay 固定延迟 seconds 秒（以 ByIndex 为时刻时单位是样本条数）。
func ConstantDelay(seconds float64) Delay {
	return func(core.Features, any) (float64, error) { return seconds, nil }
}

// DurationDelay 固定延迟 d。
func DurationDelay(d time.Duration) Delay {
	return ConstantDelay(d.Seconds())
}

// DelayFeature 以特征值作为延迟，特征可以是数值（秒）或 time.Duration。
func DelayFeature(name string) Delay {
	return func(x core.Features, _ any) (float64, error) {
		switch v := x[name].(type) {
		case time.Duration:
			return v.Seconds(), nil
		default:
			d, ok := conv.ToFloat64(v)
			if !ok {
				return 0, invalidField("delay", name, v)
			}
			return d, nil
		}
	}
}

func invalidField(kind, name string, v any) error {
	return core.NewDomainError(core.ModuleStream, core.ErrorCodeInvalidInput,
		fmt.Sprintf("stream: %s field %q must be numeric or a time, got %T", kind, name, v))
}

// QA 模拟按时间顺序的问答过程：样本到达时先提问（不给标签），
// 到 t_question + delay 时刻再揭晓标签。
type QA struct {
	src    Stream
	moment Moment
	delay  Delay

	i       int
	pending mementos
	ready   []Event
	drained bool
}

// SimulateQA 创建问答模拟。moment 为 nil 时按到达顺序计时，delay 为 nil 时不延迟。
//
// 在处理第 i 条样本之前，所有揭晓时刻不晚于 t_i 的标签按 (揭晓时刻, 下标) 顺序先行揭晓；
// 数据流结束后剩余标签按同样顺序全部揭晓。提问事件中的 X 是副本。
func SimulateQA(s Stream, moment Moment, delay Delay) *QA {
	if moment == nil {
		moment = ByIndex()
	}
	if delay == nil {
		delay = NoDelay()
	}
	return &QA{src: s, moment: moment, delay: delay}
}

func (q *QA) Next(ctx context.Context) (Event, error) {
	for {
		if len(q.ready) > 0 {
			e := q.ready[0]
			q.ready = q.ready[1:]
			return e, nil
		}
		if q.drained {
			if q.pending.Len() == 0 {
				return Event{}, io.EOF
			}
			return heap.Pop(&q.pending).(memento).answer(), nil
		}

		sample, err := q.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			q.drained = true
			continue
		}
		if err != nil {
			return Event{}, err
		}
		if err := q.ask(sample); err != nil {
			return Event{}, err
		}
	}
}

func (q *QA) ask(sample Sample) error {
	t, err := q.moment(q.i, sample.X)
	if err != nil {
		return fmt.Errorf("stream: sample %d: %w", q.i, err)
	}
	d, err := q.delay(sample.X, sample.Y)
	if err != nil {
		return fmt.Errorf("stream: sample %d: %w", q.i, err)
	}
	for q.pending.Len() > 0 && q.pending[0].expire <= t {
		q.ready = append(q.ready, heap.Pop(&q.pending).(memento).answer())
	}
	heap.Push(&q.pending, memento{i: q.i, x: sample.X, y: sample.Y, expire: t + d})
	q.ready = append(q.ready, Event{Index: q.i, X: sample.X.Clone()})
	q.i++
	return nil
}

type memento struct {
	i      int
	x      core.Features
	y      any
	expire float64
}

func (m memento) answer() Event { return Event{Index: m.i, X: m.x, Y: m.y, Answer: true} }

// mementos 是按 (expire, i) 排序的最小堆。
type mementos []memento

func (h mementos) Len() int { return len(h) }
func (h mementos) Less(a, b int) bool {
	if h[a].expire != h[b].expire {
		return h[a].expire < h[b].expire
	}
	return h[a].i < h[b].i
}
func (h mementos) Swap(a, b int) { h[a], h[b] = h[b], h[a] }
func (h *mementos) Push(v any)   { *h = append(*h, v.(memento)) }
func (h *mementos) Pop() any {
	old := *h
	m := old[len(old)-1]
	*h = old[:len(old)-1]
	return m
}
