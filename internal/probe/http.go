package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxBodyBytes = 4 << 20
	textHeadLen  = 200
	errorHeadLen = 300
)

// HTTPDoer is an interface for executing HTTP requests.
// resilience.Client and *http.Client both satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials are optional request credentials.
type Credentials struct {
	Headers   map[string]string
	BasicUser string
	BasicPass string
}

// HasAny reports whether any credential is set.
func (c Credentials) HasAny() bool {
	return len(c.Headers) > 0 || (c.BasicUser != "" && c.BasicPass != "")
}

// HTTPResult is the outcome of one probe call. OK means the call completed
// with a status below 400 (and, for JSON calls, a decodable body).
type HTTPResult struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	TextHead   string `json:"text_head,omitempty"`
}

// GetText fetches url and records whether it answered below 400.
func GetText(ctx context.Context, doer HTTPDoer, url string, timeout time.Duration, creds Credentials) HTTPResult {
	res, body := do(ctx, doer, http.MethodGet, url, timeout, creds, nil)
	if res.StatusCode == 0 {
		return res
	}
	res.OK = res.StatusCode < http.StatusBadRequest
	res.TextHead = head(body, textHeadLen)
	return res
}

// GetJSON fetches url and decodes the body into out.
func GetJSON(ctx context.Context, doer HTTPDoer, url string, timeout time.Duration, creds Credentials, out any) HTTPResult {
	return doJSON(ctx, doer, http.MethodGet, url, timeout, creds, nil, out)
}

// PostJSON posts payload as JSON and decodes the response into out.
func PostJSON(ctx context.Context, doer HTTPDoer, url string, timeout time.Duration, creds Credentials, payload, out any) HTTPResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return HTTPResult{Error: fmt.Sprintf("encode request: %v", err)}
	}
	return doJSON(ctx, doer, http.MethodPost, url, timeout, creds, data, out)
}

func doJSON(ctx context.Context, doer HTTPDoer, method, url string, timeout time.Duration, creds Credentials, payload []byte, out any) HTTPResult {
	res, body := do(ctx, doer, method, url, timeout, creds, payload)
	if res.StatusCode == 0 {
		return res
	}
	if res.StatusCode >= http.StatusBadRequest {
		res.Error = head(body, errorHeadLen)
		return res
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			res.Error = "invalid json"
			res.TextHead = head(body, textHeadLen)
			return res
		}
	}
	res.OK = true
	return res
}

// do performs the request. A zero StatusCode in the result means the call
// did not complete.
func do(ctx context.Context, doer HTTPDoer, method, url string, timeout time.Duration, creds Credentials, payload []byte) (HTTPResult, []byte) {
	if url == "" {
		return HTTPResult{Error: "empty url"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return HTTPResult{Error: fmt.Sprintf("creating request: %v", err)}, nil
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range creds.Headers {
		req.Header.Set(k, v)
	}
	if creds.BasicUser != "" && creds.BasicPass != "" {
		req.SetBasicAuth(creds.BasicUser, creds.BasicPass)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return HTTPResult{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return HTTPResult{StatusCode: resp.StatusCode, Error: fmt.Sprintf("reading body: %v", err)}, nil
	}
	return HTTPResult{StatusCode: resp.StatusCode}, body
}

func head(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
