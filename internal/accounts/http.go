package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// HTTPCreator asks a remote service to create the account.
//
// The service receives Request as JSON and answers with
// {"ok":true,"username":..,"password":..,"email":..} or
// {"ok":false,"error":..,"errorCategory":..}.
type HTTPCreator struct {
	url    string
	token  string
	client *http.Client
}

type createResponse struct {
	OK            bool   `json:"ok"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	Error         string `json:"error"`
	ErrorCategory string `json:"errorCategory"`
}

func NewHTTPCreator(url, token string, timeout time.Duration) *HTTPCreator {
	return &HTTPCreator{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPCreator) Create(ctx context.Context, req Request) (Account, error) {
	if h.url == "" {
		return Account{}, &CreateError{Category: CategoryConfigMissing, Message: "creator url not configured"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Account{}, fmt.Errorf("encode create request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Account{}, fmt.Errorf("build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Account{}, &CreateError{Category: CategoryRetryLater, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Account{}, &CreateError{Status: resp.StatusCode, Message: err.Error()}
	}

	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		out.Error = truncate(string(raw), 100)
	}

	if resp.StatusCode >= 300 || !out.OK {
		return Account{}, &CreateError{
			Category: classify(resp.StatusCode, out.ErrorCategory),
			Status:   resp.StatusCode,
			Message:  out.Error,
		}
	}
	if out.Username == "" {
		return Account{}, &CreateError{Status: resp.StatusCode, Message: "empty username in response"}
	}
	acc := Account{Username: out.Username, Password: out.Password, Email: out.Email}
	// services that only echo the username created it with the password we sent
	if acc.Password == "" {
		acc.Password = req.FixedPassword
	}
	return acc, nil
}

// classify prefers the category reported by the service, then the status code
func classify(status int, category string) string {
	switch category {
	case CategoryConfigMissing, CategoryAntiBotBlock, CategoryRetryLater, CategoryAuthFailed:
		return category
	}
	switch status {
	case http.StatusUnauthorized:
		return CategoryAuthFailed
	case http.StatusForbidden:
		return CategoryAntiBotBlock
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return CategoryRetryLater
	case http.StatusPreconditionFailed:
		return CategoryConfigMissing
	}
	return ""
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
