package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 各模块的哨兵错误都使用此类型，便于按 Code 归类
//   - 调用方通过 fmt.Errorf("...: %w", err) 附加上下文，IsXXX 仍然可用
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - 模型/流水线错误：NOT_SUPPORTED（例如对分类流水线调用 PredictOne）
//   - 输入错误：INVALID_INPUT（目标值类型不符、配置缺失等）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_SUPPORTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "compose", "stream"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleFeature  = "feature"
	ModuleCompose  = "compose"
	ModuleModel    = "model"
	ModuleMetrics  = "metrics"
	ModuleStream   = "stream"
	ModuleEvaluate = "evaluate"
	ModuleConfig   = "config"
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// 常用哨兵错误
var (
	// ErrInvalidTarget 表示目标值类型与模型不匹配（例如回归模型收到字符串目标）
	ErrInvalidTarget = NewDomainError(ModuleModel, ErrorCodeInvalidInput, "model: invalid target")

	// ErrNotRegressor 表示流水线末端模型不是回归器
	ErrNotRegressor = NewDomainError(ModuleCompose, ErrorCodeNotSupported, "compose: final step is not a regressor")

	// ErrNotClassifier 表示流水线末端模型不是分类器
	ErrNotClassifier = NewDomainError(ModuleCompose, ErrorCodeNotSupported, "compose: final step is not a classifier")
)
