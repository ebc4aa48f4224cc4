package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// ErrBodyTooLarge is returned when a request body is over the read limit.
var ErrBodyTooLarge = errors.New("request body too large")

// FromHTTPRequest builds a Request from r: its query string, its decoded
// body (JSON object or form fields) and its headers. At most maxBody bytes of
// the body are read; the body is restored for later readers.
func FromHTTPRequest(r *http.Request, maxBody int64) (Request, error) {
	req := Request{
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
	}
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	var reader io.Reader = r.Body
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return req, fmt.Errorf("read request body: %w", err)
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return req, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBody)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	body, err := DecodeBody(r.Header.Get("Content-Type"), raw)
	if err != nil {
		return req, err
	}
	req.Body = body
	return req, nil
}

// DecodeBody decodes a JSON object or form-encoded body into named fields.
// Other payloads decode to nil.
func DecodeBody(contentType string, raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch {
	case mediaType == "application/json" || (mediaType == "" && trimmed[0] == '{'):
		if trimmed[0] != '{' {
			return nil, nil
		}
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode JSON body: %w", err)
		}
		return obj, nil
	case mediaType == "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode form body: %w", err)
		}
		out := make(map[string]any, len(vals))
		for k, v := range vals {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, nil
	}
	return nil, nil
}
