package optim

import "fmt"

// New 根据名称构建优化器，用于配置驱动。lr <= 0 时使用各优化器的默认学习率。
func New(name string, lr float64) (Optimizer, error) {
	pick := func(def float64) float64 {
		if lr > 0 {
			return lr
		}
		return def
	}
	switch name {
	case "", "sgd":
		return NewSGD(pick(0.01)), nil
	case "momentum":
		return NewMomentum(pick(0.1), 0.9), nil
	case "adagrad":
		return NewAdaGrad(pick(0.1)), nil
	case "rmsprop":
		return NewRMSProp(pick(0.1), 0.9), nil
	case "adam":
		return NewAdam(pick(0.1)), nil
	case "adamax":
		return NewAdaMax(pick(0.1)), nil
	case "adabound":
		return NewAdaBound(pick(1e-3), 0.1), nil
	default:
		return nil, fmt.Errorf("optim: unknown optimizer %q", name)
	}
}
