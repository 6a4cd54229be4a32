package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	endpoint string
	client   http.Client
	Headers  map[string]string
}

type ClientOption func(*Client)

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithToken authorizes every request with bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		if token == "" {
			return
		}
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers["Authorization"] = "Bearer " + token
	}
}

// NewClient returns new management API client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	c := Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/ping"), nil,
	)
	if err != nil {
		return err
	}
	return c.doRequest(req, http.StatusOK, nil)
}

func (c *Client) ObserveClusters(ctx context.Context) (Clusters, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/clusters"), nil,
	)
	if err != nil {
		return Clusters{}, err
	}
	var respData Clusters
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) ObserveCluster(ctx context.Context, name string) (Cluster, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/clusters/%s", url.PathEscape(name)), nil,
	)
	if err != nil {
		return Cluster{}, err
	}
	var respData Cluster
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) CreateCluster(ctx context.Context, form CreateClusterForm) (Cluster, error) {
	data, err := json.Marshal(form)
	if err != nil {
		return Cluster{}, err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.getURL("/v0/clusters"), bytes.NewReader(data),
	)
	if err != nil {
		return Cluster{}, err
	}
	var respData Cluster
	err = c.doRequest(req, http.StatusCreated, &respData)
	return respData, err
}

func (c *Client) DeleteCluster(ctx context.Context, name string) (Cluster, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.getURL("/v0/clusters/%s", url.PathEscape(name)), nil,
	)
	if err != nil {
		return Cluster{}, err
	}
	var respData Cluster
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) ObserveAddOns(ctx context.Context) (AddOns, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/addons"), nil,
	)
	if err != nil {
		return AddOns{}, err
	}
	var respData AddOns
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) ObserveAddOn(ctx context.Context, name string) (AddOn, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/addons/%s", url.PathEscape(name)), nil,
	)
	if err != nil {
		return AddOn{}, err
	}
	var respData AddOn
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) CreateAddOn(ctx context.Context, form CreateAddOnForm) (AddOn, error) {
	data, err := json.Marshal(form)
	if err != nil {
		return AddOn{}, err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.getURL("/v0/addons"), bytes.NewReader(data),
	)
	if err != nil {
		return AddOn{}, err
	}
	var respData AddOn
	err = c.doRequest(req, http.StatusCreated, &respData)
	return respData, err
}

func (c *Client) DeleteAddOn(ctx context.Context, name string) (AddOn, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.getURL("/v0/addons/%s", url.PathEscape(name)), nil,
	)
	if err != nil {
		return AddOn{}, err
	}
	var respData AddOn
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) getURL(path string, args ...any) string {
	return c.endpoint + fmt.Sprintf(path, args...)
}

func (c *Client) doRequest(req *http.Request, code int, respData any) error {
	if len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Add("Content-Type", "application/json")
	}
	for key, value := range c.Headers {
		req.Header.Add(key, value)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != code {
		var respData ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return errorWithCode{
				Err:  fmt.Errorf("unexpected status %d: %w", resp.StatusCode, err),
				Code: resp.StatusCode,
			}
		}
		respData.Code = resp.StatusCode
		return &respData
	}
	if respData != nil {
		return json.NewDecoder(resp.Body).Decode(respData)
	}
	return nil
}

type errorWithCode struct {
	Err  error
	Code int
}

func (r errorWithCode) Error() string {
	return r.Err.Error()
}

func (r errorWithCode) Unwrap() error {
	return r.Err
}

func (r errorWithCode) StatusCode() int {
	return r.Code
}
