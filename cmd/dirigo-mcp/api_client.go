// Package main provides the remote API client for the Dirigo MCP server
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// APIClient implements the IdentityCore interface over the Dirigo REST API
// with bearer token authentication
type APIClient struct {
	client *resty.Client
	logger interfaces.Logger
}

// accountEnvelope mirrors the API's account response body
type accountEnvelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    *types.PosixAccount `json:"data,omitempty"`
}

// groupEnvelope mirrors the API's group response body
type groupEnvelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    *types.PosixGroup `json:"data,omitempty"`
}

// statusEnvelope mirrors the API's status response body
type statusEnvelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// loginResponse mirrors the API's login response body
type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

// NewAPIClient creates a new API client for a remote Dirigo server
func NewAPIClient(baseURL, token string, logger interfaces.Logger) *APIClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(10 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "Dirigo-MCP/1.0")

	if token != "" {
		client.SetAuthToken(token)
	}

	return &APIClient{
		client: client,
		logger: logger,
	}
}

// Login authenticates against the remote server and stores the access token
func (c *APIClient) Login(ctx context.Context, username, password string) error {
	var result loginResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&result).
		Post("/auth/login")
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	c.client.SetAuthToken(result.AccessToken)
	return nil
}

// Initialize implements the IdentityCore interface by probing the server
func (c *APIClient) Initialize(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// ActivateAccount implements the IdentityCore interface
func (c *APIClient) ActivateAccount(ctx context.Context, req *interfaces.ActivationRequest) (*types.PosixAccount, error) {
	var result accountEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/accounts")
	if err != nil {
		return nil, fmt.Errorf("activate request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("activate failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

// UpdateAccount implements the IdentityCore interface
func (c *APIClient) UpdateAccount(ctx context.Context, uid string, patch *interfaces.AccountPatch) (*types.PosixAccount, error) {
	var result accountEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(patch).
		SetResult(&result).
		Patch("/accounts/" + uid)
	if err != nil {
		return nil, fmt.Errorf("update request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("update failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

// DeactivateAccount implements the IdentityCore interface
func (c *APIClient) DeactivateAccount(ctx context.Context, uid string, deletePersonalGroup bool) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("delete_personal_group", fmt.Sprintf("%t", deletePersonalGroup)).
		Delete("/accounts/" + uid)
	if err != nil {
		return fmt.Errorf("deactivate request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("deactivate failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// GetAccount implements the IdentityCore interface. A 404 means the
// account carries no POSIX attributes and is not an error.
func (c *APIClient) GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	var result accountEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/" + uid)
	if err != nil {
		return nil, fmt.Errorf("get account request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get account failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

// AccountStatus implements the IdentityCore interface
func (c *APIClient) AccountStatus(ctx context.Context, uid string) (types.AccountStatus, error) {
	var result statusEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/" + uid + "/status")
	if err != nil {
		return "", fmt.Errorf("status request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("status lookup failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	status, _ := result.Data["status"].(string)
	return types.AccountStatus(status), nil
}

// CreateGroup implements the IdentityCore interface
func (c *APIClient) CreateGroup(ctx context.Context, req *interfaces.GroupCreateRequest) (*types.PosixGroup, error) {
	var result groupEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/groups")
	if err != nil {
		return nil, fmt.Errorf("create group request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("create group failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

// DeleteGroup implements the IdentityCore interface. A 409 means the
// group was missing or still has members.
func (c *APIClient) DeleteGroup(ctx context.Context, cn string) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete("/groups/" + cn)
	if err != nil {
		return false, fmt.Errorf("delete group request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("delete group failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return true, nil
}

// GetGroup implements the IdentityCore interface
func (c *APIClient) GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error) {
	var result groupEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/groups/" + cn)
	if err != nil {
		return nil, fmt.Errorf("get group request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get group failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

// AddGroupMember implements the IdentityCore interface
func (c *APIClient) AddGroupMember(ctx context.Context, cn, uid string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Put("/groups/" + cn + "/members/" + uid)
	if err != nil {
		return fmt.Errorf("add member request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("add member failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// RemoveGroupMember implements the IdentityCore interface
func (c *APIClient) RemoveGroupMember(ctx context.Context, cn, uid string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete("/groups/" + cn + "/members/" + uid)
	if err != nil {
		return fmt.Errorf("remove member request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("remove member failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// SetUserTrust implements the IdentityCore interface
func (c *APIClient) SetUserTrust(ctx context.Context, uid string, mode types.TrustMode, hosts []string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"mode": mode, "hosts": hosts}).
		Put("/accounts/" + uid + "/trust")
	if err != nil {
		return fmt.Errorf("set trust request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("set trust failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// SetGroupTrust implements the IdentityCore interface
func (c *APIClient) SetGroupTrust(ctx context.Context, cn string, mode types.TrustMode, hosts []string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"mode": mode, "hosts": hosts}).
		Put("/groups/" + cn + "/trust")
	if err != nil {
		return fmt.Errorf("set trust request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("set trust failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// HealthCheck implements the IdentityCore interface
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	var health map[string]interface{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&health).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("health check request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("health check failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return health, nil
}

// Close implements the IdentityCore interface
func (c *APIClient) Close() error {
	// resty clients hold no resources that need explicit closing
	return nil
}

var _ interfaces.IdentityCore = (*APIClient)(nil)
