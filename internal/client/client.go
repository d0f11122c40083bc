// Package client talks to the Kliiq API on behalf of the command line tool.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rglonek/envconfig"

	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/version"
)

// DefaultAPIURL is used when KLIIQ_API_URL is unset.
const DefaultAPIURL = "http://localhost:3001"

// ErrNoToken indicates a call that needs an account was made without a token.
var ErrNoToken = errors.New("not signed in: set KLIIQ_TOKEN")

// Env holds the client's environment settings.
type Env struct {
	APIURL string `envconfig:"KLIIQ_API_URL" default:"http://localhost:3001"`
	Token  string `envconfig:"KLIIQ_TOKEN"`
}

// LoadEnv reads KLIIQ_API_URL and KLIIQ_TOKEN.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return env, fmt.Errorf("could not process environment variables: %w", err)
	}
	return env, nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (HTTP %d)", e.Message, e.StatusCode)
}

// StatusCode returns the HTTP status of err when it is an APIError, else 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Error string `json:"error"`
}

// Usage is the account's plan and how much of it is used.
type Usage struct {
	Plan        string            `json:"plan"`
	Limits      config.PlanLimits `json:"limits"`
	Packs       int               `json:"packs"`
	PackDeletes int               `json:"pack_deletes"`
}

// Me is the answer of GET /api/me.
type Me struct {
	Account models.Account `json:"account"`
	Usage   Usage          `json:"usage"`
}

// Client is a typed wrapper around the HTTP API.
type Client struct {
	http     *resty.Client
	cacheKey string
	hasToken bool
}

// New creates a Client for baseURL. token may be empty for public calls.
func New(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})
	if token != "" {
		c.SetAuthToken(token)
	}
	sum := sha256.Sum256([]byte(c.BaseURL + "\x00" + token))
	return &Client{
		http:     c,
		cacheKey: hex.EncodeToString(sum[:16]),
		hasToken: token != "",
	}
}

// CacheKey identifies the API and account this client talks to, without
// revealing the token. Locally cached account state is only reused when the
// key matches.
func (c *Client) CacheKey() string {
	return c.cacheKey
}

// NewFromEnv creates a Client configured from the environment.
func NewFromEnv() (*Client, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	return New(env.APIURL, env.Token), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}, authenticated bool) error {
	if authenticated && !c.hasToken {
		return ErrNoToken
	}

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := http.StatusText(resp.StatusCode())
		if e, ok := resp.Error().(*errorBody); ok && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Me returns the account and its plan usage.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &me, true); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListPacks returns the account's packs, newest first.
func (c *Client) ListPacks(ctx context.Context) ([]models.Pack, error) {
	var packs []models.Pack
	if err := c.do(ctx, http.MethodGet, "/api/packs", nil, &packs, true); err != nil {
		return nil, err
	}
	return packs, nil
}

// GetPack returns one pack.
func (c *Client) GetPack(ctx context.Context, id string) (*models.Pack, error) {
	var pack models.Pack
	if err := c.do(ctx, http.MethodGet, "/api/packs/"+url.PathEscape(id), nil, &pack, true); err != nil {
		return nil, err
	}
	return &pack, nil
}

// CreatePack creates a pack, optionally seeded with appID.
func (c *Client) CreatePack(ctx context.Context, name, appID string) (*models.Pack, error) {
	var pack models.Pack
	req := models.CreatePackRequest{Name: name, AppID: appID}
	if err := c.do(ctx, http.MethodPost, "/api/packs", req, &pack, true); err != nil {
		return nil, err
	}
	return &pack, nil
}

// UpdatePack patches a pack.
func (c *Client) UpdatePack(ctx context.Context, id string, req models.UpdatePackRequest) (*models.Pack, error) {
	var pack models.Pack
	if err := c.do(ctx, http.MethodPatch, "/api/packs/"+url.PathEscape(id), req, &pack, true); err != nil {
		return nil, err
	}
	return &pack, nil
}

// AddApp appends appID to a pack.
func (c *Client) AddApp(ctx context.Context, id, appID string) (*models.Pack, error) {
	var pack models.Pack
	req := models.AddAppRequest{AppID: appID}
	if err := c.do(ctx, http.MethodPost, "/api/packs/"+url.PathEscape(id)+"/apps", req, &pack, true); err != nil {
		return nil, err
	}
	return &pack, nil
}

// RemoveApp drops appID from a pack.
func (c *Client) RemoveApp(ctx context.Context, id, appID string) (*models.Pack, error) {
	var pack models.Pack
	path := "/api/packs/" + url.PathEscape(id) + "/apps/" + url.PathEscape(appID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &pack, true); err != nil {
		return nil, err
	}
	return &pack, nil
}

// DeletePack deletes a pack.
func (c *Client) DeletePack(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/packs/"+url.PathEscape(id), nil, nil, true)
}

// PackInstaller renders a pack into an installer script.
func (c *Client) PackInstaller(ctx context.Context, id string) (*installer.Script, error) {
	var script installer.Script
	path := "/api/packs/" + url.PathEscape(id) + "/installer?format=json"
	if err := c.do(ctx, http.MethodGet, path, nil, &script, true); err != nil {
		return nil, err
	}
	return &script, nil
}

// ListDevices returns the account's devices, host first.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &devices, true); err != nil {
		return nil, err
	}
	return devices, nil
}

// RegisterDevice upserts this machine.
func (c *Client) RegisterDevice(ctx context.Context, req models.RegisterDeviceRequest) (*models.Device, error) {
	var device models.Device
	if err := c.do(ctx, http.MethodPost, "/api/devices", req, &device, true); err != nil {
		return nil, err
	}
	return &device, nil
}

// UpdateDevice renames a device or makes it the host.
func (c *Client) UpdateDevice(ctx context.Context, id string, req models.UpdateDeviceRequest) (*models.Device, error) {
	var device models.Device
	if err := c.do(ctx, http.MethodPatch, "/api/devices/"+url.PathEscape(id), req, &device, true); err != nil {
		return nil, err
	}
	return &device, nil
}

// DeleteDevice removes a device.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/devices/"+url.PathEscape(id), nil, nil, true)
}
