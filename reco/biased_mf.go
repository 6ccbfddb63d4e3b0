package reco

import (
	"encoding/json"
	"strconv"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
)

// BiasedMF 是带偏置的矩阵分解：
//
//	y = 全局均值 + 用户偏置 + 物品偏置 + <用户隐向量, 物品隐向量>
//
// 隐向量维度为 NFactors，新用户/物品的隐向量由 latentInit 采样（默认 N(0, 0.1²)，seed 可复现）。
// 偏置与隐向量分别使用 biasOpt / latentOpt 的 Clone，用户与物品各一份。
type BiasedMF struct {
	biases

	NFactors int
	L2Latent float64

	latentInit optim.Initializer
	userLatent map[string][]float64
	itemLatent map[string][]float64
	uLatOpt    optim.Optimizer
	iLatOpt    optim.Optimizer
}

// BiasedMFConfig 是 BiasedMF 的超参数，零值字段使用默认值。
type BiasedMFConfig struct {
	NFactors        int             // 默认 10
	BiasOptimizer   optim.Optimizer // 默认 SGD(0.01)
	LatentOptimizer optim.Optimizer // 默认 SGD(0.01)
	L2Bias          float64
	L2Latent        float64
	LatentInit      optim.Initializer // 默认 Normal(0, 0.1, Seed)
	Seed            uint64
}

// NewBiasedMF 创建带偏置的矩阵分解模型。
func NewBiasedMF(cfg BiasedMFConfig) *BiasedMF {
	if cfg.NFactors <= 0 {
		cfg.NFactors = 10
	}
	if cfg.LatentOptimizer == nil {
		cfg.LatentOptimizer = optim.NewSGD(0.01)
	}
	if cfg.LatentInit == nil {
		cfg.LatentInit = optim.NewNormal(0, 0.1, cfg.Seed)
	}
	m := &BiasedMF{
		biases:     newBiases(cfg.BiasOptimizer, nil),
		NFactors:   cfg.NFactors,
		L2Latent:   cfg.L2Latent,
		latentInit: cfg.LatentInit,
		userLatent: make(map[string][]float64),
		itemLatent: make(map[string][]float64),
		uLatOpt:    cfg.LatentOptimizer.Clone(),
		iLatOpt:    cfg.LatentOptimizer.Clone(),
	}
	m.L2Bias = cfg.L2Bias
	return m
}

func (m *BiasedMF) Name() string { return "BiasedMF" }

// Score 返回 (user, item) 的预测评分；未见过的用户/物品只贡献偏置部分。
func (m *BiasedMF) Score(user, item string) float64 {
	return m.biasScore(user, item) + dot(m.userLatent[user], m.itemLatent[item])
}

func (m *BiasedMF) PredictOne(x core.Features) (float64, error) {
	u, i, err := userItem(x)
	if err != nil {
		return 0, err
	}
	return m.Score(u, i), nil
}

func (m *BiasedMF) LearnOne(x core.Features, y any) error {
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
	if _, ok := m.userLatent[u]; !ok {
		m.userLatent[u] = optim.InitN(m.latentInit, m.NFactors)
	}
	if _, ok := m.itemLatent[i]; !ok {
		m.itemLatent[i] = optim.InitN(m.latentInit, m.NFactors)
	}

	g := m.lossGradient(rating, m.Score(u, i))
	uv, iv := m.userLatent[u], m.itemLatent[i]

	// 两个隐向量的梯度都基于更新前的值
	uw, ug := latentMaps(u, uv, iv, g, m.L2Latent)
	iw, ig := latentMaps(i, iv, uv, g, m.L2Latent)

	m.updateBiases(u, i, g)
	m.userLatent[u] = fromLatentMap(u, m.uLatOpt.UpdateAfterPred(uw, ug), m.NFactors)
	m.itemLatent[i] = fromLatentMap(i, m.iLatOpt.UpdateAfterPred(iw, ig), m.NFactors)
	return nil
}

// latentMaps 把隐向量展开为 "{id}#{f}" -> 值 的权重与梯度，优化器按这些 key 维护状态。
func latentMaps(id string, own, other []float64, g, l2 float64) (w, grad map[string]float64) {
	w = make(map[string]float64, len(own))
	grad = make(map[string]float64, len(own))
	for f := range own {
		k := latentKey(id, f)
		w[k] = own[f]
		grad[k] = g*other[f] + l2*own[f]
	}
	return w, grad
}

func fromLatentMap(id string, w map[string]float64, n int) []float64 {
	v := make([]float64, n)
	for f := range v {
		v[f] = w[latentKey(id, f)]
	}
	return v
}

func latentKey(id string, f int) string { return id + "#" + strconv.Itoa(f) }

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

type biasedMFState struct {
	baselineState
	UserLatent map[string][]float64 `json:"user_latent"`
	ItemLatent map[string][]float64 `json:"item_latent"`
}

func (m *BiasedMF) MarshalState() ([]byte, error) {
	return json.Marshal(biasedMFState{
		baselineState: baselineState{
			GlobalMean: m.globalMean.Get(),
			N:          m.globalMean.N(),
			UserBias:   m.userBias,
			ItemBias:   m.itemBias,
		},
		UserLatent: m.userLatent,
		ItemLatent: m.itemLatent,
	})
}

func (m *BiasedMF) UnmarshalState(data []byte) error {
	var st biasedMFState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	m.restore(st.baselineState)
	m.userLatent = st.UserLatent
	m.itemLatent = st.ItemLatent
	if m.userLatent == nil {
		m.userLatent = make(map[string][]float64)
	}
	if m.itemLatent == nil {
		m.itemLatent = make(map[string][]float64)
	}
	return nil
}

var (
	_ Recommender      = (*BiasedMF)(nil)
	_ core.Snapshotter = (*BiasedMF)(nil)
)
