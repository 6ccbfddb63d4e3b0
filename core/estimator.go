package core

// Estimator 是所有在线学习组件的最小抽象。
type Estimator interface {
	// Name 返回组件名称（用于流水线展示/日志）
	Name() string
}

// Learner 是可以逐条样本学习的模型。
// y 的类型由具体模型约定：回归为数值，分类为可比较的标签（bool / string / int）。
type Learner interface {
	Estimator
	LearnOne(x Features, y any) error
}

// Regressor 输出连续值预测。
type Regressor interface {
	Learner
	PredictOne(x Features) (float64, error)
}

// Classifier 输出类别概率分布。
type Classifier interface {
	Learner
	PredictProbaOne(x Features) (Proba, error)
}

// Transformer 是无监督的特征变换：只根据 x 更新自身状态。
type Transformer interface {
	Estimator
	LearnOne(x Features) error
	TransformOne(x Features) (Features, error)
}

// SupervisedTransformer 是有监督的特征变换：需要目标值更新自身状态（例如 TargetAgg）。
type SupervisedTransformer interface {
	Estimator
	LearnOne(x Features, y any) error
	TransformOne(x Features) (Features, error)
}

// PredictLabel 返回分类器概率最大的类别；模型尚未见过任何类别时返回 nil。
func PredictLabel(c Classifier, x Features) (any, error) {
	proba, err := c.PredictProbaOne(x)
	if err != nil {
		return nil, err
	}
	label, _ := proba.Argmax()
	return label, nil
}

// Wrapper 由包装其他模型的组件实现（例如 compose.Pipeline），Unwrap 返回被包装的最终模型。
type Wrapper interface {
	Unwrap() Estimator
}

// Innermost 沿 Wrapper 链找到最终模型；Unwrap 返回 nil 时返回当前组件。
func Innermost(e Estimator) Estimator {
	for {
		w, ok := e.(Wrapper)
		if !ok {
			return e
		}
		inner := w.Unwrap()
		if inner == nil {
			return e
		}
		e = inner
	}
}

// IsClassifier 判断组件（或其包装的最终模型）是否为分类器。
func IsClassifier(e Estimator) bool {
	inner := Innermost(e)
	if _, ok := inner.(Wrapper); ok {
		return false
	}
	_, ok := inner.(Classifier)
	return ok
}

// IsRegressor 判断组件（或其包装的最终模型）是否为回归器。
func IsRegressor(e Estimator) bool {
	inner := Innermost(e)
	if _, ok := inner.(Wrapper); ok {
		return false
	}
	_, ok := inner.(Regressor)
	return ok
}
