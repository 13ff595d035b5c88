package pipeline

import (
	"errors"
	"fmt"

	"github.com/artcityconsulting/propwatch/internal/fetch"
	"github.com/artcityconsulting/propwatch/internal/resolver"
)

// Kind 是管线错误的分类。
type Kind int

const (
	KindUnknown Kind = iota
	KindInput          // 输入无法解析（拼写、地址、不支持的站点）
	KindTransport      // 网络层失败（超时、非 2xx、连接错误）
	KindExtraction     // 页面取回但抽取整体失败
	KindReconciliation // 持久化对账失败
)

// String 返回分类的 metrics 标签值。
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input_error"
	case KindTransport:
		return "transport_error"
	case KindExtraction:
		return "extraction_error"
	case KindReconciliation:
		return "reconciliation_error"
	default:
		return "unknown"
	}
}

// Error 是带分类的管线错误，Input 保留触发它的原始输入文本。
type Error struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *Error) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: %v", e.Input, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// classify 根据底层错误推断分类。
func classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, resolver.ErrInvalidInput),
		errors.Is(err, resolver.ErrAddressInput),
		errors.Is(err, resolver.ErrUnsupportedSource):
		return KindInput
	case errors.Is(err, fetch.ErrTimeout):
		return KindTransport
	}

	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		return KindTransport
	}

	return KindUnknown
}

// wrapErr 包装为分类错误；已经是 *Error 的保持不动。
func wrapErr(kind Kind, input string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if kind == KindUnknown {
		kind = classify(err)
	}
	return &Error{Kind: kind, Input: input, Err: err}
}

// ErrKind 取错误的分类，不是管线错误时返回推断值。
func ErrKind(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return classify(err)
}
