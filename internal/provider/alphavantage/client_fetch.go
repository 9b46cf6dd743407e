package alphavantage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"stockproxy/internal/httpx"
	"stockproxy/internal/provider"
)

const (
	// errorMessageField carries an explicit provider error.
	errorMessageField = "Error Message"
	// noteField carries the provider's rate-limit notice.
	noteField = "Note"

	// maxBodyBytes bounds a single payload; a full daily MACD history is
	// around 1MB.
	maxBodyBytes = 16 << 20
)

// Fetch performs one query and returns the parsed payload. Provider errors
// embedded in a 200 response are detected from the body, not the status.
func (c *Client) Fetch(ctx context.Context, fn provider.Function, symbol string, params provider.Params) (gjson.Result, error) {
	query := buildQuery(c.apiKey, fn, symbol, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return gjson.Result{}, provider.UnhandledError(fmt.Sprintf("creating request: %v", err), err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, provider.TransportError(0, httpx.ErrorMessage(err), err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, provider.TransportError(0, fmt.Sprintf("reading response: %v", err), err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return gjson.Result{}, provider.TransportError(res.StatusCode, msg, nil)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, provider.UnhandledError(fmt.Sprintf("decoding %s response: invalid JSON", fn), nil)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}, provider.UnhandledError(fmt.Sprintf("decoding %s response: want a JSON object, got %s", fn, doc.Type), nil)
	}

	if msg := doc.Get(errorMessageField); truthy(msg) {
		return gjson.Result{}, provider.UpstreamError(msg.String())
	}
	if note := doc.Get(noteField); truthy(note) {
		return gjson.Result{}, provider.RateLimitError(nil)
	}
	return doc, nil
}

// truthy reports whether a marker field is present with a non-empty value.
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	}
	return true
}
