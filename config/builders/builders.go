// Package builders 在 init 中把内置步骤注册到 config 注册表。
package builders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rushteam/flowml/compose"
	"github.com/rushteam/flowml/config"
	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/ensemble"
	"github.com/rushteam/flowml/feature"
	"github.com/rushteam/flowml/imblearn"
	"github.com/rushteam/flowml/model"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/preprocessing"
	"github.com/rushteam/flowml/reco"
)

func init() {
	config.Register("preprocessing.standard_scaler", BuildStandardScaler)
	config.Register("preprocessing.min_max_scaler", BuildMinMaxScaler)
	config.Register("preprocessing.max_abs_scaler", BuildMaxAbsScaler)
	config.Register("preprocessing.one_hot", BuildOneHotEncoder)
	config.Register("preprocessing.log", BuildLogTransformer)
	config.Register("preprocessing.binner", BuildBinner)
	config.Register("preprocessing.imputer", BuildStatImputer)
	config.Register("preprocessing.cross", BuildFeatureCross)

	config.Register("compose.select", BuildSelect)
	config.Register("compose.discard", BuildDiscard)
	config.Register("compose.rename", BuildRenamer)
	config.Register("compose.prefix", BuildPrefixer)
	config.Register("compose.expr", BuildExpr)
	config.Register("compose.union", BuildUnion)

	config.Register("feature.agg", BuildAgg)
	config.Register("feature.target_agg", BuildTargetAgg)
	config.Register("feature.feast", BuildFeastEnricher)

	config.Register("model.linear_regression", BuildLinearRegression)
	config.Register("model.logistic_regression", BuildLogisticRegression)
	config.Register("model.softmax_regression", BuildSoftmaxRegression)

	config.Register("reco.baseline", BuildBaseline)
	config.Register("reco.biased_mf", BuildBiasedMF)

	config.Register("imblearn.random_under_sampler", BuildRandomUnderSampler)
	config.Register("imblearn.random_over_sampler", BuildRandomOverSampler)
	config.Register("imblearn.random_sampler", BuildRandomSampler)

	config.Register("ensemble.bagging_classifier", BuildBaggingClassifier)
	config.Register("ensemble.bagging_regressor", BuildBaggingRegressor)
}

func invalid(format string, args ...any) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// estimator 避免把带 error 的 nil 指针包装成非 nil 接口。
func estimator[T core.Estimator](e T, err error) (core.Estimator, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

func requireString(cfg map[string]any, key string) (string, error) {
	s := conv.ConfigGet(cfg, key, "")
	if s == "" {
		return "", invalid("%s not found", key)
	}
	return s, nil
}

func stringMap(cfg map[string]any, key string) map[string]string {
	raw := conv.ConfigGetMap(cfg, key)
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := conv.ToString(v); ok {
			out[k] = s
		}
	}
	return out
}

// ---------- preprocessing ----------

func BuildStandardScaler(map[string]any) (core.Estimator, error) {
	return preprocessing.NewStandardScaler(), nil
}

func BuildMinMaxScaler(map[string]any) (core.Estimator, error) {
	return preprocessing.NewMinMaxScaler(), nil
}

func BuildMaxAbsScaler(map[string]any) (core.Estimator, error) {
	return preprocessing.NewMaxAbsScaler(), nil
}

func BuildOneHotEncoder(cfg map[string]any) (core.Estimator, error) {
	return preprocessing.NewOneHotEncoder(conv.SliceAnyToString(cfg["fields"])...), nil
}

func BuildLogTransformer(cfg map[string]any) (core.Estimator, error) {
	return &preprocessing.LogTransformer{Fields: conv.SliceAnyToString(cfg["fields"])}, nil
}

func BuildBinner(cfg map[string]any) (core.Estimator, error) {
	raw := conv.ConfigGetMap(cfg, "bins")
	if len(raw) == 0 {
		return nil, invalid("bins not found")
	}
	bins := make(map[string][]float64, len(raw))
	for field, edges := range raw {
		bins[field] = conv.SliceAnyToFloat64(edges)
	}
	return preprocessing.NewBinner(bins), nil
}

func BuildStatImputer(cfg map[string]any) (core.Estimator, error) {
	fields := stringMap(cfg, "fields")
	if len(fields) == 0 {
		return nil, invalid("fields not found")
	}
	s, err := preprocessing.NewStatImputer(fields)
	return estimator(s, err)
}

func BuildFeatureCross(cfg map[string]any) (core.Estimator, error) {
	return &preprocessing.FeatureCross{
		Left:  conv.SliceAnyToString(cfg["left"]),
		Right: conv.SliceAnyToString(cfg["right"]),
	}, nil
}

// ---------- compose ----------

func BuildSelect(cfg map[string]any) (core.Estimator, error) {
	return compose.NewSelect(conv.SliceAnyToString(cfg["fields"])...), nil
}

func BuildDiscard(cfg map[string]any) (core.Estimator, error) {
	return compose.NewDiscard(conv.SliceAnyToString(cfg["fields"])...), nil
}

func BuildRenamer(cfg map[string]any) (core.Estimator, error) {
	mapping := stringMap(cfg, "mapping")
	if len(mapping) == 0 {
		return nil, invalid("mapping not found")
	}
	return &compose.Renamer{Mapping: mapping}, nil
}

func BuildPrefixer(cfg map[string]any) (core.Estimator, error) {
	prefix, err := requireString(cfg, "prefix")
	if err != nil {
		return nil, err
	}
	return &compose.Prefixer{Prefix: prefix}, nil
}

func BuildExpr(cfg map[string]any) (core.Estimator, error) {
	name, err := requireString(cfg, "feature")
	if err != nil {
		return nil, err
	}
	expr, err := requireString(cfg, "expr")
	if err != nil {
		return nil, err
	}
	e, err := compose.NewExpr(name, expr)
	return estimator(e, err)
}

// BuildUnion 构建 TransformerUnion，steps 为嵌套的 {type, config} 列表，每个步骤都必须是变换器。
func BuildUnion(cfg map[string]any) (core.Estimator, error) {
	raw, ok := cfg["steps"].([]any)
	if !ok || len(raw) == 0 {
		return nil, invalid("steps not found or invalid")
	}
	steps := make([]compose.Step, 0, len(raw))
	for i, r := range raw {
		sc, ok := r.(map[string]any)
		if !ok {
			return nil, invalid("union step %d is not a map", i)
		}
		est, err := buildNested(sc)
		if err != nil {
			return nil, fmt.Errorf("union step %d: %w", i, err)
		}
		step, ok := est.(compose.Step)
		if !ok {
			return nil, invalid("union step %d (%s) is not a transformer", i, est.Name())
		}
		steps = append(steps, step)
	}
	return compose.NewTransformerUnion(steps...), nil
}

// buildNested 构建形如 {type: ..., config: {...}} 的嵌套步骤。
func buildNested(sc map[string]any) (core.Estimator, error) {
	stepType, err := requireString(sc, "type")
	if err != nil {
		return nil, err
	}
	return config.BuildStep(stepType, conv.ConfigGetMap(sc, "config"))
}

// ---------- feature ----------

func BuildAgg(cfg map[string]any) (core.Estimator, error) {
	on, err := requireString(cfg, "on")
	if err != nil {
		return nil, err
	}
	a, err := feature.NewAgg(on, conv.SliceAnyToString(cfg["by"]), conv.ConfigGet(cfg, "how", "mean"))
	return estimator(a, err)
}

func BuildTargetAgg(cfg map[string]any) (core.Estimator, error) {
	a, err := feature.NewTargetAgg(
		conv.SliceAnyToString(cfg["by"]),
		conv.ConfigGet(cfg, "how", "mean"),
		conv.ConfigGet(cfg, "target", ""),
	)
	return estimator(a, err)
}

// ---------- model ----------

func buildOptimizer(cfg map[string]any, nameKey, lrKey string) (optim.Optimizer, error) {
	return optim.New(conv.ConfigGet(cfg, nameKey, "sgd"), conv.ConfigGetFloat64(cfg, lrKey, 0))
}

func BuildLinearRegression(cfg map[string]any) (core.Estimator, error) {
	opt, err := buildOptimizer(cfg, "optimizer", "lr")
	if err != nil {
		return nil, err
	}
	m := model.NewLinearRegression(opt)
	m.L2 = conv.ConfigGetFloat64(cfg, "l2", 0)
	m.InterceptLR = conv.ConfigGetFloat64(cfg, "intercept_lr", m.InterceptLR)
	return m, nil
}

func BuildLogisticRegression(cfg map[string]any) (core.Estimator, error) {
	opt, err := buildOptimizer(cfg, "optimizer", "lr")
	if err != nil {
		return nil, err
	}
	m := model.NewLogisticRegression(opt)
	m.L2 = conv.ConfigGetFloat64(cfg, "l2", 0)
	m.InterceptLR = conv.ConfigGetFloat64(cfg, "intercept_lr", m.InterceptLR)
	if pos, ok := cfg["pos_label"]; ok {
		m.PosLabel = pos
	}
	if neg, ok := cfg["neg_label"]; ok {
		m.NegLabel = neg
	}
	return m, nil
}

func BuildSoftmaxRegression(cfg map[string]any) (core.Estimator, error) {
	opt, err := buildOptimizer(cfg, "optimizer", "lr")
	if err != nil {
		return nil, err
	}
	m := model.NewSoftmaxRegression(opt)
	m.L2 = conv.ConfigGetFloat64(cfg, "l2", 0)
	return m, nil
}

// ---------- reco ----------

func BuildBaseline(cfg map[string]any) (core.Estimator, error) {
	opt, err := buildOptimizer(cfg, "optimizer", "lr")
	if err != nil {
		return nil, err
	}
	return reco.NewBaseline(opt, conv.ConfigGetFloat64(cfg, "l2", 0)), nil
}

func BuildBiasedMF(cfg map[string]any) (core.Estimator, error) {
	biasOpt, err := buildOptimizer(cfg, "bias_optimizer", "bias_lr")
	if err != nil {
		return nil, err
	}
	latentOpt, err := buildOptimizer(cfg, "latent_optimizer", "latent_lr")
	if err != nil {
		return nil, err
	}
	return reco.NewBiasedMF(reco.BiasedMFConfig{
		NFactors:        int(conv.ConfigGetInt64(cfg, "n_factors", 10)),
		BiasOptimizer:   biasOpt,
		LatentOptimizer: latentOpt,
		L2Bias:          conv.ConfigGetFloat64(cfg, "l2_bias", 0),
		L2Latent:        conv.ConfigGetFloat64(cfg, "l2_latent", 0),
		Seed:            uint64(conv.ConfigGetInt64(cfg, "seed", 0)),
	}), nil
}

// ---------- imblearn ----------

// parseLabel 把配置中的类别名转为与数据一致的类型，labelType 为 bool / int / float / string。
func parseLabel(s, labelType string) (any, error) {
	switch labelType {
	case "", "string":
		return s, nil
	case "bool":
		return strconv.ParseBool(s)
	case "int":
		return strconv.Atoi(s)
	case "float":
		return strconv.ParseFloat(s, 64)
	default:
		return nil, invalid("unknown label_type %q (supported: bool, int, float, string)", labelType)
	}
}

func desiredDist(cfg map[string]any) (map[any]float64, error) {
	raw := conv.ConfigGetMap(cfg, "desired")
	if raw == nil {
		return nil, nil
	}
	labelType := strings.ToLower(conv.ConfigGet(cfg, "label_type", "string"))
	out := make(map[any]float64, len(raw))
	for k, v := range raw {
		label, err := parseLabel(k, labelType)
		if err != nil {
			return nil, fmt.Errorf("desired label %q: %w", k, err)
		}
		p, ok := conv.ToFloat64(v)
		if !ok {
			return nil, invalid("desired proportion for %q is not numeric", k)
		}
		out[label] = p
	}
	return out, nil
}

func nestedClassifier(cfg map[string]any, key string) (core.Classifier, error) {
	sc := conv.ConfigGetMap(cfg, key)
	if sc == nil {
		return nil, invalid("%s not found", key)
	}
	est, err := buildNested(sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	clf, ok := est.(core.Classifier)
	if !ok || !core.IsClassifier(est) {
		return nil, invalid("%s (%s) is not a classifier", key, est.Name())
	}
	return clf, nil
}

func BuildRandomUnderSampler(cfg map[string]any) (core.Estimator, error) {
	clf, err := nestedClassifier(cfg, "classifier")
	if err != nil {
		return nil, err
	}
	desired, err := desiredDist(cfg)
	if err != nil {
		return nil, err
	}
	s, err := imblearn.NewRandomUnderSampler(clf, desired, uint64(conv.ConfigGetInt64(cfg, "seed", 0)))
	return estimator(s, err)
}

func BuildRandomOverSampler(cfg map[string]any) (core.Estimator, error) {
	clf, err := nestedClassifier(cfg, "classifier")
	if err != nil {
		return nil, err
	}
	desired, err := desiredDist(cfg)
	if err != nil {
		return nil, err
	}
	s, err := imblearn.NewRandomOverSampler(clf, desired, uint64(conv.ConfigGetInt64(cfg, "seed", 0)))
	return estimator(s, err)
}

func BuildRandomSampler(cfg map[string]any) (core.Estimator, error) {
	clf, err := nestedClassifier(cfg, "classifier")
	if err != nil {
		return nil, err
	}
	desired, err := desiredDist(cfg)
	if err != nil {
		return nil, err
	}
	s, err := imblearn.NewRandomSampler(clf, desired,
		conv.ConfigGetFloat64(cfg, "sampling_rate", 1),
		uint64(conv.ConfigGetInt64(cfg, "seed", 0)))
	return estimator(s, err)
}

// ---------- ensemble ----------

// BuildBaggingClassifier 的 model 为嵌套步骤配置，每个成员用同一配置各自构建一份。
func BuildBaggingClassifier(cfg map[string]any) (core.Estimator, error) {
	sc := conv.ConfigGetMap(cfg, "model")
	if _, err := nestedClassifier(cfg, "model"); err != nil {
		return nil, err
	}
	factory := func() core.Classifier {
		est, _ := buildNested(sc)
		return est.(core.Classifier)
	}
	b, err := ensemble.NewBaggingClassifier(factory,
		int(conv.ConfigGetInt64(cfg, "n", 10)),
		uint64(conv.ConfigGetInt64(cfg, "seed", 0)))
	return estimator(b, err)
}

func BuildBaggingRegressor(cfg map[string]any) (core.Estimator, error) {
	sc := conv.ConfigGetMap(cfg, "model")
	if sc == nil {
		return nil, invalid("model not found")
	}
	est, err := buildNested(sc)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if _, ok := est.(core.Regressor); !ok || !core.IsRegressor(est) {
		return nil, invalid("model (%s) is not a regressor", est.Name())
	}
	factory := func() core.Regressor {
		est, _ := buildNested(sc)
		return est.(core.Regressor)
	}
	b, err := ensemble.NewBaggingRegressor(factory,
		int(conv.ConfigGetInt64(cfg, "n", 10)),
		uint64(conv.ConfigGetInt64(cfg, "seed", 0)))
	return estimator(b, err)
}
