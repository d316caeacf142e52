package printerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/infra/logger"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("printerapi: not found")

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "printfleet/1.0"
	apiPrefix        = "/api/v1"
)

// Config locates the backend.
type Config struct {
	BaseURL        string      `json:"base_url"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	APIKey         string      `json:"api_key"`
	RefreshDelayMS int         `json:"refresh_delay_ms"`
	OAuth          OAuthConfig `json:"oauth"`
}

// OAuthConfig enables the client credentials flow when ClientID is set.
type OAuthConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Enabled reports whether OAuth2 is configured.
func (o OAuthConfig) Enabled() bool { return o.ClientID != "" }

func (o OAuthConfig) httpClient(timeout time.Duration) (*http.Client, error) {
	if o.TokenURL == "" {
		return nil, fmt.Errorf("printerapi: oauth token_url is required")
	}
	cc := clientcredentials.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		TokenURL:     o.TokenURL,
		Scopes:       o.Scopes,
	}
	c := cc.Client(context.Background())
	c.Timeout = timeout
	return c, nil
}

// RefreshDelay is the settle delay between a status refresh and the refetch.
func (c Config) RefreshDelay() time.Duration {
	if c.RefreshDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RefreshDelayMS) * time.Millisecond
}

var (
	_ fleet.InventorySource = (*Client)(nil)
	_ fleet.StatusRefresher = (*Client)(nil)
	_ fleet.ModelCatalog    = (*Client)(nil)
	_ fleet.JobCanceller    = (*Client)(nil)
	_ fleet.JobSubmitter    = (*Client)(nil)
)

// Client is the REST binding used by the dispatch core.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	apiKey  string
	log     logger.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.OAuth.Enabled() {
		if httpClient, err = cfg.OAuth.httpClient(timeout); err != nil {
			return nil, err
		}
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		apiKey:  cfg.APIKey,
		log:     logger.OrNop(log),
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("printerapi: base_url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("printerapi: parse base_url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("printerapi: base_url %q has no host", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// Printers lists the fleet.
func (c *Client) Printers(ctx context.Context) ([]model.Printer, error) {
	var out []model.Printer
	if err := c.do(ctx, http.MethodGet, "/printers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PrintJob returns the sliced file and its filament requirements.
func (c *Client) PrintJob(ctx context.Context, fileID int) (model.PrintJob, error) {
	var out model.PrintJob
	if err := c.do(ctx, http.MethodGet, "/library/files/"+strconv.Itoa(fileID)+"/filament-requirements", nil, &out); err != nil {
		return model.PrintJob{}, err
	}
	if out.FileID == 0 {
		out.FileID = fileID
	}
	return out, nil
}

// LoadedFilaments returns the spools currently loaded in a printer.
func (c *Client) LoadedFilaments(ctx context.Context, printerID int) ([]model.LoadedFilament, error) {
	var out []model.LoadedFilament
	if err := c.do(ctx, http.MethodGet, "/printers/"+strconv.Itoa(printerID)+"/filaments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshPrinterStatus asks the backend to re-read the printer.
func (c *Client) RefreshPrinterStatus(ctx context.Context, printerID int) error {
	return c.do(ctx, http.MethodPost, "/printers/"+strconv.Itoa(printerID)+"/refresh-status", nil, nil)
}

// PrinterModels lists the printer models present in the fleet.
func (c *Client) PrinterModels(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/printers/models", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelJob cancels one background dispatch job.
func (c *Client) CancelJob(ctx context.Context, jobID int) (model.CancelResult, error) {
	var out model.CancelResult
	if err := c.do(ctx, http.MethodPost, "/background-dispatch/"+strconv.Itoa(jobID)+"/cancel", nil, &out); err != nil {
		return model.CancelResult{}, err
	}
	return out, nil
}

// SubmitDispatch starts a background dispatch.
func (c *Client) SubmitDispatch(ctx context.Context, req model.DispatchRequest) error {
	return c.do(ctx, http.MethodPost, "/background-dispatch", req, nil)
}

// DispatchStatus returns the current background dispatch progress.
func (c *Client) DispatchStatus(ctx context.Context) (model.DispatchEvent, error) {
	var out model.DispatchEvent
	if err := c.do(ctx, http.MethodGet, "/background-dispatch", nil, &out); err != nil {
		return model.DispatchEvent{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: c.baseURL.Path + apiPrefix + path}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debugw("printer api call", map[string]any{"method": method, "path": path, "status": resp.StatusCode, "request_id": reqID})

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api %s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
