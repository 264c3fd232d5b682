package catalog

import "errors"

// 读路径对外只暴露一小组错误类别，boundary 层据此映射状态码。
var (
	// ErrNotFound 表示主实体不存在，属于永久失败：不重试、不缓存。
	ErrNotFound = errors.New("primary entity not found")

	// ErrInvalidKey 表示请求无法归一化出合法的缓存键。
	ErrInvalidKey = errors.New("invalid aggregate key")
)
