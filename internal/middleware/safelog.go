package middleware

import "strings"

// MaskToken маскирует идентификатор токена в логах (в prod не светить полный id).
func MaskToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
