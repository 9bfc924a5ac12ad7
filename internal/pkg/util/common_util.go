package util

import (
	"strings"
	"unicode"
)

// NormalizePhone 归一化手机号用于联系人去重：
// 仅保留数字并剥离国际前缀，非法输入返回空串
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "0098"):
		digits = "0" + digits[4:]
	case strings.HasPrefix(digits, "98") && len(digits) > 10:
		digits = "0" + digits[2:]
	case strings.HasPrefix(digits, "9") && len(digits) == 10:
		digits = "0" + digits
	}

	if len(digits) != 11 || !strings.HasPrefix(digits, "09") {
		return ""
	}
	return digits
}

const endpointPreviewLen = 30

// ShortEndpoint 推送端点只保留前缀用于日志与审计，避免完整端点入日志
func ShortEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if len(endpoint) <= endpointPreviewLen {
		return endpoint
	}
	return endpoint[:endpointPreviewLen] + "..."
}

// TrimPreview 通知正文预览，截断发生在投递之前
func TrimPreview(body string, limit int) string {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "\r", " ")
	body = strings.ReplaceAll(body, "\n", " ")
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit-3]) + "..."
}
