// Package provisioning — rest.go: адаптер контракта Client поверх
// REST API VPN-сервиса. Bearer-токен, JSON-тела, сроки — unix timestamp.
// Все транспортные детали живут здесь и только здесь.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// RESTClient реализует Client поверх HTTP.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	policy  RetryPolicy
}

// NewRESTClient создаёт адаптер. timeout — на один HTTP-вызов,
// policy ограничивает повторы при временных сбоях.
func NewRESTClient(baseURL, token string, timeout time.Duration, policy RetryPolicy) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
	}
}

// accountPayload — форма аккаунта в API сервиса.
type accountPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	ExpiresAt   int64  `json:"expires_at"` // unix timestamp
	Enabled     bool   `json:"enabled"`
	Unlimited   bool   `json:"unlimited_traffic"`
	UsedTraffic int64  `json:"used_traffic"`
}

func (c *RESTClient) CreateAccount(ctx context.Context, username string, initialExpiry time.Time, unlimitedTraffic bool) (string, error) {
	body := map[string]interface{}{
		"username":          username,
		"expires_at":        initialExpiry.Unix(),
		"enabled":           true,
		"unlimited_traffic": unlimitedTraffic,
	}

	var out struct {
		Data accountPayload `json:"data"`
	}
	err := c.call(ctx, http.MethodPost, "/api/v1/accounts", body, &out)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"username":   username,
		"remote_ref": out.Data.ID,
	}).Info("Удалённый аккаунт создан")
	return out.Data.ID, nil
}

func (c *RESTClient) SetExpiry(ctx context.Context, remoteRef string, expiresAt time.Time) error {
	body := map[string]interface{}{"expires_at": expiresAt.Unix()}
	return c.call(ctx, http.MethodPatch, "/api/v1/accounts/"+url.PathEscape(remoteRef)+"/expiry", body, nil)
}

func (c *RESTClient) SetStatus(ctx context.Context, remoteRef string, enabled bool) error {
	body := map[string]interface{}{"enabled": enabled}
	return c.call(ctx, http.MethodPatch, "/api/v1/accounts/"+url.PathEscape(remoteRef)+"/status", body, nil)
}

func (c *RESTClient) GetStatus(ctx context.Context, remoteRef string) (*Status, error) {
	var out struct {
		Data accountPayload `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(remoteRef), nil, &out); err != nil {
		return nil, err
	}
	return &Status{
		ExpiresAt:   time.Unix(out.Data.ExpiresAt, 0),
		Enabled:     out.Data.Enabled,
		UsedTraffic: out.Data.UsedTraffic,
	}, nil
}

func (c *RESTClient) FindByUsername(ctx context.Context, username string) (string, bool, error) {
	var out struct {
		Data []accountPayload `json:"data"`
	}
	err := c.call(ctx, http.MethodGet, "/api/v1/accounts?username="+url.QueryEscape(username), nil, &out)
	if err != nil {
		return "", false, err
	}
	for _, a := range out.Data {
		if a.Username == username {
			return a.ID, true, nil
		}
	}
	return "", false, nil
}

// call выполняет один логический вызов API с повторами.
// Сеть и 5xx/429 заворачиваются в UnavailableError и ретраятся,
// 404 превращается в ErrRemoteNotFound сразу, прочие 4xx — терминальны.
func (c *RESTClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return retry(ctx, c.policy, func() error {
		return c.doOnce(ctx, method, path, body, out)
	})
}

func (c *RESTClient) doOnce(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка сериализации тела: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRemoteNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &UnavailableError{Cause: fmt.Errorf("статус %s: %s", resp.Status, respBody)}
	case resp.StatusCode >= 400:
		return fmt.Errorf("запрос отклонён (%s): %s", resp.Status, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("ошибка разбора ответа: %w", err)
		}
	}
	return nil
}
