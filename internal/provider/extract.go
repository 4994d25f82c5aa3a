package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Reply paths for the two HTTP contracts.
const (
	chatReplyPath   = "choices.0.message.content"
	domainReplyPath = "result.response.message"
)

// errorMessagePaths are tried in order when a provider answers non-2xx.
var errorMessagePaths = []string{"message", "error.message", "error", "detail", "errors.0.message"}

// extractReply returns the string at path, or false when it is absent,
// not a string, or blank.
func extractReply(body []byte, path string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	res := gjson.GetBytes(body, path)
	if res.Type != gjson.String {
		return "", false
	}
	if strings.TrimSpace(res.Str) == "" {
		return "", false
	}
	return res.Str, true
}

// extractErrorMessage pulls a provider-supplied message out of an error body.
// It returns "" when the body is not JSON or carries no usable message.
func extractErrorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range errorMessagePaths {
		res := gjson.GetBytes(body, path)
		if res.Type == gjson.String && strings.TrimSpace(res.Str) != "" {
			return res.Str
		}
	}
	return ""
}
