package papi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the normalized result of a completed, successful call. It is
// immutable once constructed; one instance is returned per call and is
// owned by the caller afterwards.
type Response struct {
	// Status is the HTTP status code of the response.
	Status int
	// Headers holds the response headers.
	Headers http.Header
	// Body is the JSON-decoded payload when the response parses as JSON,
	// otherwise the body text as a string. Nil for empty bodies.
	Body any
	// Raw is the unmodified response body.
	Raw []byte
	// URL is the effective URL the request was addressed to.
	URL string
}

// newResponse builds a Response from a completed HTTP exchange. Bodies that
// fail to parse as JSON are exposed as raw text, matching how the appliance
// serves non-JSON endpoints.
func newResponse(resp *http.Response, raw []byte, url string) *Response {
	r := &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
		Raw:     raw,
		URL:     url,
	}
	if len(raw) == 0 {
		return r
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		r.Body = string(raw)
		return r
	}
	r.Body = decoded
	return r
}

// JSON decodes the response body into v. Returns a ProtocolError if the
// body is empty or not valid JSON for the target type.
func (r *Response) JSON(v any) error {
	if len(r.Raw) == 0 {
		return &ProtocolError{Op: "decode response", Err: errEmptyBody}
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return &ProtocolError{Op: "decode response", Err: err}
	}
	return nil
}

// Get returns the value at a gjson path in the response body, for ad-hoc
// field access without declaring a struct.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// GetString returns the string value at a gjson path in the response body.
func (r *Response) GetString(path string) string {
	return r.Get(path).String()
}
