package luna

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MessageDelimiter separates progress segments inside a status message.
const MessageDelimiter = ";;"

// TokenPath is the authentication resource.
const TokenPath = "token"

// Response is the normalized result of one daemon exchange.
type Response struct {
	StatusCode int
	// Body holds the decoded JSON object, or nil when the payload was empty
	// or not a JSON object.
	Body map[string]any
	Raw  []byte
}

func newResponse(code int, raw []byte) *Response {
	resp := &Response{StatusCode: code, Raw: raw}
	if len(raw) == 0 {
		return resp
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		resp.Body = body
	}
	return resp
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestID returns the asynchronous request identifier, if the daemon
// assigned one.
func (r *Response) RequestID() string {
	if r == nil || r.Body == nil {
		return ""
	}
	switch v := r.Body["request_id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// Message returns the daemon's message field, or an empty string.
func (r *Response) Message() string {
	if r == nil || r.Body == nil {
		return ""
	}
	if msg, ok := r.Body["message"].(string); ok {
		return msg
	}
	return ""
}

// Decode unmarshals the raw payload into dest.
func (r *Response) Decode(dest any) error {
	if r == nil || len(r.Raw) == 0 {
		return fmt.Errorf("empty response")
	}
	return json.Unmarshal(r.Raw, dest)
}

// Err converts a non-2xx response into an *APIError.
func (r *Response) Err() error {
	if r == nil {
		return fmt.Errorf("no response")
	}
	if r.OK() {
		return nil
	}
	msg := strings.TrimSpace(r.Message())
	if msg == "" && r.Body == nil {
		msg = strings.TrimSpace(string(r.Raw))
		msg = truncateRunes(msg, maxErrorBody)
	}
	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}
	return &APIError{StatusCode: r.StatusCode, Message: msg, Raw: r.Raw}
}

// maxErrorBody bounds how much of a non-JSON error body is reported.
const maxErrorBody = 512

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// APIError is a daemon-reported failure.
type APIError struct {
	StatusCode int
	Message    string
	Raw        []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// SplitMessage splits a multi-message string on MessageDelimiter. Empty and
// whitespace-only segments are dropped; nothing is deduplicated.
func SplitMessage(message string) []string {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	parts := strings.Split(message, MessageDelimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// TokenRequest is the body of POST token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse mirrors the body returned by POST token.
type TokenResponse struct {
	Token string `json:"token"`
}

// StatusPath returns the polling resource for a request identifier.
func StatusPath(requestID string) string {
	return "config/status/" + url.PathEscape(requestID)
}

// ConfigPath joins escaped segments below config/, e.g.
// ConfigPath("node", "node001", "_clone").
func ConfigPath(segments ...string) string {
	parts := []string{"config"}
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, url.PathEscape(s))
		}
	}
	return strings.Join(parts, "/")
}

// ControlPath returns the bulk control resource for system and action.
func ControlPath(system, action string) string {
	return "control/action/" + url.PathEscape(system) + "/_" + url.PathEscape(action)
}

// ControlTargetPath returns the single-target control resource.
func ControlTargetPath(system, target, action string) string {
	return "control/action/" + url.PathEscape(system) + "/" + url.PathEscape(target) + "/_" + url.PathEscape(action)
}

// ConfigPayload wraps fields in the daemon's config envelope:
// {"config": {"<resource>": {"<name>": fields}}}.
func ConfigPayload(resource, name string, fields map[string]any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	inner := map[string]any{}
	if name == "" {
		inner = fields
	} else {
		inner[name] = fields
	}
	return map[string]any{"config": map[string]any{resource: inner}}
}

// ControlPayload builds {"control": {"<system>": {"<action>": {"hostlist": "<hostlist>"}}}}.
func ControlPayload(system, action, hostlist string) map[string]any {
	return map[string]any{
		"control": map[string]any{
			system: map[string]any{
				action: map[string]any{"hostlist": hostlist},
			},
		},
	}
}

// Records extracts body["config"][resource] as a map of name to fields.
// Entries that are not objects are skipped.
func (r *Response) Records(resource string) map[string]map[string]any {
	out := map[string]map[string]any{}
	if r == nil || r.Body == nil {
		return out
	}
	cfg, ok := r.Body["config"].(map[string]any)
	if !ok {
		return out
	}
	entries, ok := cfg[resource].(map[string]any)
	if !ok {
		return out
	}
	for name, v := range entries {
		if fields, ok := v.(map[string]any); ok {
			out[name] = fields
		}
	}
	return out
}

// Section returns body["config"][resource] when it is an object, used by
// singleton resources such as cluster.
func (r *Response) Section(resource string) map[string]any {
	if r == nil || r.Body == nil {
		return nil
	}
	cfg, ok := r.Body["config"].(map[string]any)
	if !ok {
		return nil
	}
	section, _ := cfg[resource].(map[string]any)
	return section
}
