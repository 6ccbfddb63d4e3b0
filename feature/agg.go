// Package feature 提供流式特征提取：按组聚合（Agg / TargetAgg）与在线特征富化（FeastEnricher）。
package feature

import (
	"strconv"
	"strings"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/stats"
)

// groups 维护 "组 -> 统计量"，新组的统计量按 how 惰性创建。
type groups struct {
	how   string
	stats map[string]stats.Univariate
}

func newGroups(how string) (*groups, string, error) {
	st, err := stats.New(how)
	if err != nil {
		return nil, "", core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, err.Error())
	}
	return &groups{how: how, stats: make(map[string]stats.Univariate)}, st.Name(), nil
}

func (g *groups) update(key string, v float64) {
	st, ok := g.stats[key]
	if !ok {
		st, _ = stats.New(g.how)
		g.stats[key] = st
	}
	st.Update(v)
}

func (g *groups) get(key string) float64 {
	if st, ok := g.stats[key]; ok {
		return st.Get()
	}
	st, _ := stats.New(g.how)
	return st.Get()
}

// groupKey 把 by 字段的值编码为组 key，缺失字段记为空串。
// 每个值带长度前缀，值本身含分隔符时也不会与其他组冲突。
func groupKey(x core.Features, by []string) string {
	if len(by) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range by {
		v := conv.Key(x[k])
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}

func featureName(prefix, statName string, by []string) string {
	name := prefix + "_" + statName
	if len(by) > 0 {
		name += "_by_" + strings.Join(by, "_and_")
	}
	return name
}

// Agg 按 By 分组对特征 On 做在线统计，输出单个特征 "{on}_{how}_by_{by}"。
//
// 示例：Agg{On: "revenue", By: []string{"shop"}, How: "mean"} 输出 "revenue_mean_by_shop"，
// 即当前样本所在店铺的历史平均营收。没有 By 时对全部样本统计，输出 "{on}_{how}"。
// 与其他特征一起使用时通常放入 compose.TransformerUnion。
type Agg struct {
	On  string
	By  []string
	How string

	name   string
	groups *groups
}

// NewAgg 创建聚合特征；how 为 stats.New 支持的统计量名称，例如 "mean"、"ewm:0.5"、"rolling_mean:7"。
func NewAgg(on string, by []string, how string) (*Agg, error) {
	g, statName, err := newGroups(how)
	if err != nil {
		return nil, err
	}
	return &Agg{On: on, By: by, How: how, name: featureName(on, statName, by), groups: g}, nil
}

// FeatureName 返回输出特征名。
func (a *Agg) FeatureName() string { return a.name }

func (a *Agg) Name() string { return "Agg(" + a.name + ")" }

// LearnOne 用 x[On] 更新所在组的统计量；On 缺失或非数值时忽略。
func (a *Agg) LearnOne(x core.Features) error {
	v, ok := x.Float(a.On)
	if !ok {
		return nil
	}
	a.groups.update(groupKey(x, a.By), v)
	return nil
}

func (a *Agg) TransformOne(x core.Features) (core.Features, error) {
	return core.Features{a.name: a.groups.get(groupKey(x, a.By))}, nil
}

// TargetAgg 按 By 分组对目标值做在线统计，输出 "target_{how}_by_{by}"。
//
// 它是有监督变换器：在流水线中先变换再学习，所以样本看到的统计量不包含自身的目标值。
type TargetAgg struct {
	By  []string
	How string

	name   string
	groups *groups
}

// NewTargetAgg 创建目标聚合特征；targetName 为空时使用 "target"。
func NewTargetAgg(by []string, how, targetName string) (*TargetAgg, error) {
	if targetName == "" {
		targetName = "target"
	}
	g, statName, err := newGroups(how)
	if err != nil {
		return nil, err
	}
	return &TargetAgg{By: by, How: how, name: featureName(targetName, statName, by), groups: g}, nil
}

// FeatureName 返回输出特征名。
func (a *TargetAgg) FeatureName() string { return a.name }

func (a *TargetAgg) Name() string { return "TargetAgg(" + a.name + ")" }

// LearnOne 用目标值更新所在组的统计量；bool 目标按 1/0 计。
func (a *TargetAgg) LearnOne(x core.Features, y any) error {
	v, ok := conv.ToFloat64(y)
	if !ok {
		return core.ErrInvalidTarget
	}
	a.groups.update(groupKey(x, a.By), v)
	return nil
}

func (a *TargetAgg) TransformOne(x core.Features) (core.Features, error) {
	return core.Features{a.name: a.groups.get(groupKey(x, a.By))}, nil
}

var (
	_ core.Transformer           = (*Agg)(nil)
	_ core.SupervisedTransformer = (*TargetAgg)(nil)
)
