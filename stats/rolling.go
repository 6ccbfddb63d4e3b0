package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Window 是定长环形缓冲区，满时 Append 返回被挤出的最旧值。
type Window struct {
	size  int
	buf   []float64
	start int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, buf: make([]float64, 0, size)}
}

// Append 追加一个值；若窗口已满，返回被挤出的值与 true。
func (w *Window) Append(x float64) (float64, bool) {
	if len(w.buf) < w.size {
		w.buf = append(w.buf, x)
		return 0, false
	}
	old := w.buf[w.start]
	w.buf[w.start] = x
	w.start = (w.start + 1) % w.size
	return old, true
}

func (w *Window) Len() int   { return len(w.buf) }
func (w *Window) Size() int  { return w.size }
func (w *Window) Full() bool { return len(w.buf) == w.size }

// Values 按从旧到新的顺序返回窗口内的值。
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.buf))
	for i := range w.buf {
		out = append(out, w.buf[(w.start+i)%len(w.buf)])
	}
	return out
}

// Rolling 将任意可撤销统计量限制在最近 size 个样本上。
type Rolling struct {
	stat   Revertable
	window *Window
}

// NewRolling 包装一个可撤销统计量。
func NewRolling(stat Revertable, size int) *Rolling {
	return &Rolling{stat: stat, window: NewWindow(size)}
}

func (r *Rolling) Name() string {
	return fmt.Sprintf("rolling_%s_%d", r.stat.Name(), r.window.Size())
}

func (r *Rolling) Update(x float64) {
	if old, evicted := r.window.Append(x); evicted {
		r.stat.Revert(old)
	}
	r.stat.Update(x)
}

func (r *Rolling) Get() float64 { return r.stat.Get() }

// RollingMin 是窗口内最小值。
type RollingMin struct{ window *Window }

func NewRollingMin(size int) *RollingMin { return &RollingMin{window: NewWindow(size)} }

func (r *RollingMin) Name() string     { return fmt.Sprintf("rolling_min_%d", r.window.Size()) }
func (r *RollingMin) Update(x float64) { r.window.Append(x) }

func (r *RollingMin) Get() float64 {
	min := math.Inf(1)
	for _, v := range r.window.buf {
		min = math.Min(min, v)
	}
	return min
}

// RollingMax 是窗口内最大值。
type RollingMax struct{ window *Window }

func NewRollingMax(size int) *RollingMax { return &RollingMax{window: NewWindow(size)} }

func (r *RollingMax) Name() string     { return fmt.Sprintf("rolling_max_%d", r.window.Size()) }
func (r *RollingMax) Update(x float64) { r.window.Append(x) }

func (r *RollingMax) Get() float64 {
	max := math.Inf(-1)
	for _, v := range r.window.buf {
		max = math.Max(max, v)
	}
	return max
}

// New 根据名称构建统计量，用于配置驱动（如 feature.Agg 的 how）。
//
// 支持的名称：
//   - mean / var / std / count / sum / min / max / ptp
//   - ewm:<alpha> / ewvar:<alpha>，例如 ewm:0.5
//   - rolling_<mean|var|std|count|sum|min|max>:<window>，例如 rolling_mean:7
func New(name string) (Univariate, error) {
	base, param, hasParam := strings.Cut(name, ":")
	switch base {
	case "mean":
		return NewMean(), nil
	case "var":
		return NewVar(), nil
	case "std":
		return NewStd(), nil
	case "count":
		return &Count{}, nil
	case "sum":
		return &Sum{}, nil
	case "min":
		return &Min{}, nil
	case "max":
		return &Max{}, nil
	case "ptp":
		return &PeakToPeak{}, nil
	case "ewm", "ewvar":
		alpha := 0.5
		if hasParam {
			a, err := strconv.ParseFloat(param, 64)
			if err != nil || a <= 0 || a > 1 {
				return nil, fmt.Errorf("stats: invalid alpha %q for %s", param, base)
			}
			alpha = a
		}
		if base == "ewm" {
			return NewEWMean(alpha), nil
		}
		return NewEWVar(alpha), nil
	}

	inner, ok := strings.CutPrefix(base, "rolling_")
	if !ok {
		return nil, fmt.Errorf("stats: unknown statistic %q", name)
	}
	size, err := strconv.Atoi(param)
	if !hasParam || err != nil || size < 1 {
		return nil, fmt.Errorf("stats: %s requires a positive window, e.g. %s:10", base, base)
	}
	switch inner {
	case "min":
		return NewRollingMin(size), nil
	case "max":
		return NewRollingMax(size), nil
	}
	stat, err := New(inner)
	if err != nil {
		return nil, err
	}
	rev, ok := stat.(Revertable)
	if !ok {
		return nil, fmt.Errorf("stats: %s cannot be used in a rolling window", inner)
	}
	return NewRolling(rev, size), nil
}
