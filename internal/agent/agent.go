// Package agent implements the HTTP client side of the node agent RPC
// contract exposed by each edge node. The agent itself (container runtime, resource
// reporting, message forwarding) is an external collaborator, out of
// scope — this package only dials it.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"edgeorch/internal/model"
	"edgeorch/pkg/apperror"
	"edgeorch/pkg/ratelimit"
)

const (
	basicAuthUser = "user"
	basicAuthPass = "requestaccess"
)

// Resources is the decoded response of GET /get_resources.
type Resources struct {
	RAM             int64     `json:"RAM"`
	HDD             int64     `json:"HDD"`
	CPU             []float64 `json:"CPU"`
	CPUCores        int       `json:"CPU_cores"`
	CPULogicalCores int       `json:"CPU_logical_cores"`
	IP              string    `json:"IP"`
}

// Config controls timeouts for the different RPC classes, mirroring
// control calls get 20s, container start/e2e calls get much longer, plus
// the basic-auth credential presented to every node agent. Username and
// Password default to the reference implementation's hardcoded pair when
// left empty, so callers that only care about timeouts can ignore them.
type Config struct {
	ControlTimeout      time.Duration
	ContainerTimeout    time.Duration
	LivenessDialTimeout time.Duration
	Username            string
	Password            string
}

// DefaultConfig returns the reference implementation's timeouts and
// credential.
func DefaultConfig() Config {
	return Config{
		ControlTimeout:      20 * time.Second,
		ContainerTimeout:    1000 * time.Second,
		LivenessDialTimeout: 2 * time.Second,
		Username:            basicAuthUser,
		Password:            basicAuthPass,
	}
}

// Client talks to node agents' HTTP APIs (the target node is passed to
// each call) over basic auth, with
// bounded retries and an outbound rate limiter protecting the (possibly
// resource-weak) edge node from being hammered by retried control calls.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    ratelimit.Limiter
	maxRetries int
}

// NewClient builds a Client. limiter may be nil, in which case calls are
// unthrottled.
func NewClient(cfg Config, limiter ratelimit.Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.ContainerTimeout},
		cfg:        cfg,
		limiter:    limiter,
		maxRetries: 3,
	}
}

// CheckAlive performs the liveness probe: a TCP connect to the
// node's host:port, connect_ex == 0 equivalent semantics.
func (c *Client) CheckAlive(ctx context.Context, node model.Node) bool {
	hostPort, err := node.HostPort()
	if err != nil {
		return false
	}
	d := net.Dialer{Timeout: c.cfg.LivenessDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// GetResources fetches GET /get_resources from the node.
func (c *Client) GetResources(ctx context.Context, node model.Node) (Resources, error) {
	var res Resources
	err := c.doJSON(ctx, node, http.MethodGet, "/get_resources", nil, &res, c.cfg.ControlTimeout, true)
	return res, err
}

// StartDockerContainer posts [image, exposed_port, external_port] to
// /start_docker_container.
func (c *Client) StartDockerContainer(ctx context.Context, node model.Node, image, exposedPort, externalPort string) error {
	body := []any{image, exposedPort, externalPort}
	return c.doJSON(ctx, node, http.MethodPost, "/start_docker_container", body, nil, c.cfg.ContainerTimeout, true)
}

// PushMicroserviceDestinations posts the microservice -> dependents map to
// /microservices_dest.
func (c *Client) PushMicroserviceDestinations(ctx context.Context, node model.Node, dest map[string][]string) error {
	return c.doJSON(ctx, node, http.MethodPost, "/microservices_dest", dest, nil, c.cfg.ControlTimeout, true)
}

// PushMicroservicePorts posts the full-id -> (container_port, external_port)
// map to /microservices_ports.
func (c *Client) PushMicroservicePorts(ctx context.Context, node model.Node, ports map[string][2]string) error {
	return c.doJSON(ctx, node, http.MethodPost, "/microservices_ports", ports, nil, c.cfg.ControlTimeout, true)
}

// PushInvocationPath posts the full-id -> node-id map to /invocation_path.
func (c *Client) PushInvocationPath(ctx context.Context, node model.Node, path map[string]int64) error {
	return c.doJSON(ctx, node, http.MethodPost, "/invocation_path", path, nil, c.cfg.ControlTimeout, true)
}

// PushNodesIPs posts the node-id -> url map to /nodes_ips.
func (c *Client) PushNodesIPs(ctx context.Context, node model.Node, ips map[string]string) error {
	return c.doJSON(ctx, node, http.MethodPost, "/nodes_ips", ips, nil, c.cfg.ControlTimeout, true)
}

// GetAppResults fetches GET /get_app_results (the final value surfaced by
// the out-of-scope demo application chain).
func (c *Client) GetAppResults(ctx context.Context, node model.Node) (any, error) {
	var out any
	err := c.doJSON(ctx, node, http.MethodGet, "/get_app_results", nil, &out, c.cfg.ContainerTimeout, true)
	return out, err
}

// doJSON performs one RPC, with bounded retries and, when a limiter is
// set, rate limiting keyed by the node URL for every call. Once the
// retries are used up it returns a CodeAgentHTTP error; deciding what
// that means for the node is left to the caller.
func (c *Client) doJSON(ctx context.Context, node model.Node, method, path string, body, out any, timeout time.Duration, auth bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, node.URL); err != nil {
			return apperror.Wrap(err, apperror.CodeAgentHTTP, "rate limit wait failed").WithField(node.URL)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperror.Wrap(ctx.Err(), apperror.CodeAgentHTTP, "context cancelled during retry").WithField(node.URL)
			case <-time.After(backoff(attempt)):
			}
		}

		err := c.doOnce(ctx, node, method, path, body, out, timeout, auth)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return apperror.Wrap(lastErr, apperror.CodeAgentHTTP,
		fmt.Sprintf("agent call failed after %d attempts", c.maxRetries+1)).WithField(node.URL)
}

func backoff(attempt int) time.Duration {
	d := 100 * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func (c *Client) doOnce(ctx context.Context, node model.Node, method, path string, body, out any, timeout time.Duration, auth bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, node.URL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		user, pass := c.cfg.Username, c.cfg.Password
		if user == "" {
			user = basicAuthUser
		}
		if pass == "" {
			pass = basicAuthPass
		}
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
