package analysis

import "strings"

// IsQuotaError reports whether err looks like a provider rate/quota rejection:
// its message contains "429" or, case-insensitively, "quota".
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return isQuotaMessage(err.Error())
}

func isQuotaMessage(msg string) bool {
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota")
}
