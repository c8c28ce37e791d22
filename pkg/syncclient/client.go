package syncclient

import (
	"arithmo_backend/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// APIError 后端返回的非2xx响应。网络错误（无响应）直接以原始 error 透出。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Conflict force-sync 返回409时携带的两侧文档，由调用方解决。
type Conflict struct {
	BackendData model.ProgressData `json:"backendData"`
	LocalData   model.ProgressData `json:"localData"`
}

// envelope 服务端统一响应结构。
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client Arithmo REST 接口的HTTP客户端。
type Client struct {
	baseURL string
	hc      *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, err
	}
	return &env, resp.StatusCode, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	env, status, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &APIError{Status: status, Message: env.Message}
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	env, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &APIError{Status: status, Message: env.Message}
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

type authResponse struct {
	Token        string `json:"token"`
	Username     string `json:"username"`
	RecoveryCode string `json:"recoveryCode"`
}

// Signup 注册并保留返回的令牌，恢复码只在此处出现一次。
func (c *Client) Signup(ctx context.Context, username, password string) (recoveryCode string, err error) {
	var out authResponse
	err = c.post(ctx, "/signup", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.RecoveryCode, nil
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	var out authResponse
	err := c.post(ctx, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}
	c.SetToken(out.Token)
	return nil
}

// RefreshToken 用当前（可能已过期）的令牌换取新令牌。
func (c *Client) RefreshToken(ctx context.Context) error {
	var out authResponse
	if err := c.post(ctx, "/refresh-token", nil, &out); err != nil {
		return err
	}
	c.SetToken(out.Token)
	return nil
}

type progressResponse struct {
	ProgressData *model.ProgressData `json:"progressData"`
}

func (c *Client) LoadProgress(ctx context.Context) (*model.ProgressData, error) {
	var out progressResponse
	if err := c.get(ctx, "/progress/load-progress", &out); err != nil {
		return nil, err
	}
	return out.ProgressData, nil
}

func (c *Client) UpdateActivity(ctx context.Context, level, activity int, rewards model.Rewards, isCompleted bool) (*model.ProgressData, error) {
	var out progressResponse
	err := c.post(ctx, "/progress/update-activity", map[string]interface{}{
		"level":       level,
		"activity":    activity,
		"rewards":     rewards,
		"isCompleted": isCompleted,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.ProgressData, nil
}

func (c *Client) SaveProgress(ctx context.Context, data model.ProgressData) error {
	return c.post(ctx, "/progress/save-progress", map[string]interface{}{
		"progressData": data,
	}, nil)
}

// ForceSync 推送完整本地文档。409 时返回冲突而不是错误，由调用方解决。
func (c *Client) ForceSync(ctx context.Context, data model.ProgressData) (*model.ProgressData, *Conflict, error) {
	env, status, err := c.do(ctx, http.MethodPost, "/progress/force-sync", map[string]interface{}{
		"progressData": data,
	})
	if err != nil {
		return nil, nil, err
	}

	if status == http.StatusConflict {
		var conflict Conflict
		if err := json.Unmarshal(env.Data, &conflict); err != nil {
			return nil, nil, err
		}
		return nil, &conflict, nil
	}
	if status >= 400 {
		return nil, nil, &APIError{Status: status, Message: env.Message}
	}

	var out progressResponse
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return nil, nil, err
		}
	}
	return out.ProgressData, nil, nil
}

func (c *Client) ResetProgress(ctx context.Context) error {
	return c.post(ctx, "/progress/reset", nil, nil)
}
