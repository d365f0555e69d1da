package download

import "errors"

// 哨兵错误构成抓取失败的分类学，处理层据此映射 HTTP 状态码。
var (
	// ErrInvalidURL 表示来源 URL 为空、无法解析或使用了不支持的协议。
	ErrInvalidURL = errors.New("invalid source url")

	// ErrUpstream 表示上游返回非 2xx 状态或网络层失败。
	ErrUpstream = errors.New("upstream request failed")

	// ErrTimeout 表示抓取未能在限定时间窗口内完成。
	ErrTimeout = errors.New("fetch timed out")
)
