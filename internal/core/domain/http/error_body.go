package httpdomain

import "encoding/json"

// ErrorBody is the union of fields the backend uses in error responses
type ErrorBody struct {
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Reason     string `json:"reason,omitempty"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

// ParseErrorBody reads an error body. Non-JSON bodies become the message.
func ParseErrorBody(contentType string, body []byte) ErrorBody {
	var eb ErrorBody
	if IsJSONContentType(contentType) {
		if err := json.Unmarshal(body, &eb); err == nil {
			return eb
		}
		// error is sometimes an object; fall back to the generic decode
		var generic map[string]interface{}
		if err := json.Unmarshal(body, &generic); err == nil {
			eb.Message = stringField(generic, "message")
			eb.Detail = stringField(generic, "detail")
			eb.Reason = stringField(generic, "reason")
			eb.UpgradeURL = stringField(generic, "upgrade_url")
			return eb
		}
	}
	eb.Message = string(body)
	return eb
}

// Text returns the most specific human-readable message, or "" if none
func (b ErrorBody) Text() string {
	switch {
	case b.Error != "":
		return b.Error
	case b.Message != "":
		return b.Message
	case b.Detail != "":
		return b.Detail
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
