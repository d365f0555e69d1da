package download

import (
	"mime"
	"net/http"
	"net/url"
	"path"
)

// filenameFromResponse 依次尝试 Content-Disposition 头与 URL 路径末段推导
// 原始文件名，两者皆不可用时返回空串，由调用方回退到占位名。
func filenameFromResponse(resp *http.Response, source *url.URL) string {
	if name := filenameFromDisposition(resp.Header.Get("Content-Disposition")); name != "" {
		return name
	}
	return lastPathSegment(source)
}

// filenameFromDisposition 解析 Content-Disposition。mime.ParseMediaType 会
// 解码 RFC 5987 的 filename* 扩展参数并使其优先于普通 filename；
// 无法解析的头按缺失处理。
func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// lastPathSegment 取 URL 路径的最后一段；查询与片段已被解析器剥离。
func lastPathSegment(source *url.URL) string {
	if source == nil {
		return ""
	}
	segment := path.Base(source.Path)
	if segment == "/" || segment == "." {
		return ""
	}
	return segment
}
