package reco

import (
	"encoding/json"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/stats"
)

// Baseline 是推荐系统的一阶基线：y = 全局均值 + 用户偏置 + 物品偏置。
type Baseline struct {
	biases
}

// NewBaseline 创建基线模型；opt 为 nil 时使用 SGD(0.01)，用户与物品偏置各用一份 Clone。
func NewBaseline(opt optim.Optimizer, l2 float64) *Baseline {
	b := &Baseline{biases: newBiases(opt, nil)}
	b.L2Bias = l2
	return b
}

func (m *Baseline) Name() string { return "Baseline" }

// Score 返回 (user, item) 的预测评分；未见过的用户/物品偏置为 0。
func (m *Baseline) Score(user, item string) float64 { return m.biasScore(user, item) }

func (m *Baseline) PredictOne(x core.Features) (float64, error) {
	u, i, err := userItem(x)
	if err != nil {
		return 0, err
	}
	return m.Score(u, i), nil
}

func (m *Baseline) LearnOne(x core.Features, y any) error {
	u, i, err := userItem(x)
	if err != nil {
		return err
	}
	rating, err := ratingOf(y)
	if err != nil {
		return err
	}
	m.globalMean.Update(rating)
	m.ensure(u, i)
	m.updateBiases(u, i, m.lossGradient(rating, m.Score(u, i)))
	return nil
}

type baselineState struct {
	GlobalMean float64            `json:"global_mean"`
	N          float64            `json:"n"`
	UserBias   map[string]float64 `json:"user_bias"`
	ItemBias   map[string]float64 `json:"item_bias"`
}

func (m *Baseline) MarshalState() ([]byte, error) {
	return json.Marshal(baselineState{
		GlobalMean: m.globalMean.Get(),
		N:          m.globalMean.N(),
		UserBias:   m.userBias,
		ItemBias:   m.itemBias,
	})
}

func (m *Baseline) UnmarshalState(data []byte) error {
	var st baselineState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	m.restore(st)
	return nil
}

func (b *biases) restore(st baselineState) {
	b.globalMean = stats.Mean{}
	b.globalMean.UpdateWeighted(st.GlobalMean, st.N)
	b.userBias = nonNil(st.UserBias)
	b.itemBias = nonNil(st.ItemBias)
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return make(map[string]float64)
	}
	return m
}

var (
	_ Recommender      = (*Baseline)(nil)
	_ core.Snapshotter = (*Baseline)(nil)
)
