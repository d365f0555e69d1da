package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxNameLength 是保留原始文件名的上限，超长名称会被折叠。
const maxNameLength = 100

// SanitizeName 将不安全字符替换为下划线，只保留 [A-Za-z0-9._-]。
// 超过 maxNameLength 的名称折叠为「前 50 字符 + 哈希 + 末 10 字符」，
// 既保持可读性又避免超出文件系统限制。结果可能为空串，由调用方回退。
func SanitizeName(raw string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, raw)

	if len(sanitized) > maxNameLength {
		sanitized = fmt.Sprintf("%s_%s_%s", sanitized[:50], shortHash(sanitized), sanitized[len(sanitized)-10:])
	}

	return sanitized
}

// FallbackName 在无法从上游推导名称时，基于源 URL 生成稳定的占位名。
func FallbackName(rawURL string) string {
	return "download_" + shortHash(rawURL)
}

// ValidateName 拒绝空名、路径分隔符与 .. 片段，保证名称只能落在暂存目录内。
func ValidateName(name string) error {
	if name == "" || name == "." {
		return ErrInvalidName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// splitName 拆分主干与扩展名，供冲突后缀插入使用；点开头的名称整体视为主干。
func splitName(name string) (stem, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

func shortHash(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])[:8]
}
