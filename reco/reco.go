// Package reco 提供在线推荐模型：Baseline（全局均值 + 用户/物品偏置）与 BiasedMF（带偏置的矩阵分解）。
//
// 样本特征中 "user" 与 "item" 为用户与物品（任意类型，统一转为字符串），其余特征被忽略；
// 目标值为评分（数值）。
package reco

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/pkg/mathx"
	"github.com/rushteam/flowml/pkg/utils"
	"github.com/rushteam/flowml/stats"
)

const (
	// UserKey 是样本中用户所在的特征名
	UserKey = "user"
	// ItemKey 是样本中物品所在的特征名
	ItemKey = "item"
)

// Recommender 是可以给 (user, item) 打分的推荐模型。
type Recommender interface {
	core.Regressor
	Score(user, item string) float64
}

// Recommendation 是一条推荐结果。
type Recommendation struct {
	Item  string
	Score float64
	// Label 记录推荐来源，多路结果合并时按 utils.MergeLabel 累积
	Label utils.Label
}

func userItem(x core.Features) (string, string, error) {
	u, okU := x[UserKey]
	i, okI := x[ItemKey]
	if !okU || !okI || u == nil || i == nil {
		return "", "", core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("reco: sample must contain %q and %q", UserKey, ItemKey))
	}
	return conv.Key(u), conv.Key(i), nil
}

func ratingOf(y any) (float64, error) {
	f, ok := conv.ToFloat64(y)
	if !ok {
		return 0, fmt.Errorf("reco target %v: %w", y, core.ErrInvalidTarget)
	}
	return f, nil
}

// biases 是 Baseline 与 BiasedMF 共享的部分：全局均值与用户/物品偏置。
type biases struct {
	Loss     optim.Loss
	L2Bias   float64
	ClipGrad float64
	init     optim.Initializer

	globalMean stats.Mean
	userBias   map[string]float64
	itemBias   map[string]float64
	uOpt, iOpt optim.Optimizer
}

func newBiases(opt optim.Optimizer, init optim.Initializer) biases {
	if opt == nil {
		opt = optim.NewSGD(0.01)
	}
	if init == nil {
		init = optim.Zeros{}
	}
	return biases{
		Loss:     optim.Squared{},
		ClipGrad: 1e12,
		init:     init,
		userBias: make(map[string]float64),
		itemBias: make(map[string]float64),
		uOpt:     opt.Clone(),
		iOpt:     opt.Clone(),
	}
}

// ensure 为新的用户/物品初始化偏置。
func (b *biases) ensure(user, item string) {
	if _, ok := b.userBias[user]; !ok {
		b.userBias[user] = b.init.Init()
	}
	if _, ok := b.itemBias[item]; !ok {
		b.itemBias[item] = b.init.Init()
	}
}

func (b *biases) biasScore(user, item string) float64 {
	return b.globalMean.Get() + b.userBias[user] + b.itemBias[item]
}

func (b *biases) lossGradient(y, pred float64) float64 {
	return mathx.Clamp(b.Loss.Gradient(y, pred), -b.ClipGrad, b.ClipGrad)
}

func (b *biases) updateBiases(user, item string, g float64) {
	uGrad := map[string]float64{user: g + b.L2Bias*b.userBias[user]}
	iGrad := map[string]float64{item: g + b.L2Bias*b.itemBias[item]}
	b.userBias = b.uOpt.UpdateAfterPred(b.userBias, uGrad)
	b.itemBias = b.iOpt.UpdateAfterPred(b.itemBias, iGrad)
}

// Recommend 对候选物品打分并返回得分最高的 k 个（k <= 0 时返回全部），得分相同时按物品名排序。
func Recommend(ctx context.Context, r Recommender, user any, items []any, k int) ([]Recommendation, error) {
	u := conv.Key(user)
	label := utils.Label{Value: r.Name(), Source: "reco"}
	out := make([]Recommendation, 0, len(items))
	for n, item := range items {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i := conv.Key(item)
		out = append(out, Recommendation{Item: i, Score: r.Score(u, i), Label: label})
	}
	sortRecommendations(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Merge 合并多路推荐结果：同一物品取最高得分，来源 Label 累积；结果按得分降序。
func Merge(lists ...[]Recommendation) []Recommendation {
	byItem := make(map[string]int)
	var out []Recommendation
	for _, list := range lists {
		for _, rec := range list {
			idx, ok := byItem[rec.Item]
			if !ok {
				byItem[rec.Item] = len(out)
				out = append(out, rec)
				continue
			}
			cur := &out[idx]
			cur.Score = max(cur.Score, rec.Score)
			cur.Label = utils.MergeLabel(cur.Label, rec.Label)
		}
	}
	sortRecommendations(out)
	return out
}

func sortRecommendations(recs []Recommendation) {
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Item, b.Item)
	})
}
