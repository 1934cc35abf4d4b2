package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/ports"
)

// httpClient is the shared plumbing behind the OAuth and API-key adapters:
// a timeout-bounded *http.Client plus a decode-and-classify helper so every
// adapter maps transport failures onto the same closed ProviderErrorCode
// set instead of leaking raw net/http errors to command handlers.
type httpClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func newHTTPClient(baseURL string, timeout time.Duration, log zerolog.Logger) httpClient {
	return httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// doJSON issues an HTTP request against path with the given auth header
// value and decodes a JSON response body into out. Any failure is
// translated into a *ports.ProviderError with a stable code.
func (h httpClient) doJSON(ctx context.Context, method, path, authHeader string, body []byte, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return &ports.ProviderError{Code: ports.ProviderErrUnknown, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ports.ProviderError{Code: ports.ProviderErrTimeout, Message: ctxErr.Error()}
		}
		h.log.Warn().Err(err).Str("path", path).Msg("provider request failed")
		return &ports.ProviderError{Code: ports.ProviderErrTimeout, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ports.ProviderError{Code: ports.ProviderErrBadResponse, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ports.ProviderError{Code: ports.ProviderErrUnauthorized, Message: string(respBody)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ports.ProviderError{Code: ports.ProviderErrRateLimited, Message: string(respBody)}
	case resp.StatusCode >= 500:
		return &ports.ProviderError{Code: ports.ProviderErrTimeout, Message: fmt.Sprintf("server error %d: %s", resp.StatusCode, respBody)}
	case resp.StatusCode >= 400:
		return &ports.ProviderError{Code: ports.ProviderErrBadResponse, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &ports.ProviderError{Code: ports.ProviderErrBadResponse, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func credentialString(creds ports.CredentialBundle, key string) (string, bool) {
	v, ok := creds[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
