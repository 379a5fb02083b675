package utils

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"edulens-auth/types"
)

// Fields that must never reach the audit log in the clear.
var sensitiveFields = []string{
	"password", "otp", "totpCode", "refreshToken", "sessionToken", "accessToken",
}

// SanitizedLogEntry creates a deep-copied audit entry for the current
// request with credential-bearing body fields masked.
func SanitizedLogEntry(c *fiber.Ctx) types.LogEntry {
	method := string([]byte(c.Method()))
	url := string([]byte(c.OriginalURL()))
	requestBody := maskSensitiveFields(c.Body())
	responseBody := maskSensitiveFields(c.Response().Body())

	requestHeaders := make([]byte, len(c.Request().Header.Header()))
	copy(requestHeaders, c.Request().Header.Header())

	responseHeaders := make([]byte, len(c.Response().Header.Header()))
	copy(responseHeaders, c.Response().Header.Header())

	return types.LogEntry{
		Method:          method,
		URL:             url,
		RequestBody:     requestBody,
		ResponseBody:    responseBody,
		RequestHeaders:  string(requestHeaders),
		ResponseHeaders: string(responseHeaders),
		StatusCode:      c.Response().StatusCode(),
		CreatedAt:       time.Now(),
	}
}

// maskSensitiveFields replaces credential fields in a JSON body with a
// placeholder. Non-JSON bodies pass through as a copy.
func maskSensitiveFields(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(append([]byte(nil), body...))
	}

	masked := maskMap(payload)

	out, err := json.Marshal(masked)
	if err != nil {
		return string(append([]byte(nil), body...))
	}
	return string(out)
}

func maskMap(payload map[string]interface{}) map[string]interface{} {
	for key, value := range payload {
		if nested, ok := value.(map[string]interface{}); ok {
			payload[key] = maskMap(nested)
			continue
		}
		for _, field := range sensitiveFields {
			if key == field {
				payload[key] = "***"
				break
			}
		}
	}
	return payload
}
