package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/infra/logger"
)

const (
	loginPath      = "/api/auth/login"
	telemetryPath  = "/api/plugins/telemetry/DEVICE/%s/values/timeseries"
	attributesPath = "/api/plugins/telemetry/DEVICE/%s/values/attributes"
	serverAttrPath = "/api/plugins/telemetry/DEVICE/%s/values/attributes/SERVER_SCOPE"
	rpcOneWayPath  = "/api/plugins/rpc/oneway/%s"
	rpcTwoWayPath  = "/api/plugins/rpc/twoway/%s"

	maxErrorBody = 512
)

// HTTPClient implements platform.Client over the platform REST API.
// Sessions are cached per tenant and shared by concurrent requests.
type HTTPClient struct {
	http    *http.Client
	tenants platform.TenantSource
	cfg     Config
	log     logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	tokens map[string]platform.Token
	logins singleflight.Group
}

// NewHTTPClient creates a client resolving credentials through tenants.
func NewHTTPClient(cfg Config, tenants platform.TenantSource, log logger.Logger) *HTTPClient {
	cfg.SetDefaults()
	if log == nil {
		log = logger.New("platform-client")
	}
	return &HTTPClient{
		http:    &http.Client{},
		tenants: tenants,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		tokens:  make(map[string]platform.Token),
	}
}

// LatestTelemetry reads the latest sample of each key.
func (c *HTTPClient) LatestTelemetry(ctx context.Context, tenantID, deviceID string, keys []string) (platform.Telemetry, error) {
	q := url.Values{"keys": {strings.Join(keys, ",")}}
	var raw map[string][]rawPoint
	path := fmt.Sprintf(telemetryPath, url.PathEscape(deviceID))
	if err := c.do(ctx, tenantID, "telemetry_latest", http.MethodGet, path, q, nil, &raw, 0); err != nil {
		return nil, err
	}
	return toTelemetry(raw), nil
}

// TelemetrySeries reads samples between q.Start and q.End.
func (c *HTTPClient) TelemetrySeries(ctx context.Context, tenantID, deviceID string, q platform.SeriesQuery) (platform.Telemetry, error) {
	if !q.End.After(q.Start) {
		return nil, fmt.Errorf("telemetry series: end must be after start")
	}
	agg := q.Agg
	if agg == "" {
		agg = platform.AggNone
	}
	v := url.Values{
		"keys":    {strings.Join(q.Keys, ",")},
		"startTs": {strconv.FormatInt(q.Start.UnixMilli(), 10)},
		"endTs":   {strconv.FormatInt(q.End.UnixMilli(), 10)},
		"agg":     {string(agg)},
		"orderBy": {"DESC"},
	}
	if q.Interval > 0 {
		v.Set("interval", strconv.FormatInt(q.Interval.Milliseconds(), 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var raw map[string][]rawPoint
	path := fmt.Sprintf(telemetryPath, url.PathEscape(deviceID))
	if err := c.do(ctx, tenantID, "telemetry_series", http.MethodGet, path, v, nil, &raw, 0); err != nil {
		return nil, err
	}
	return toTelemetry(raw), nil
}

// Attributes reads attributes of any scope.
func (c *HTTPClient) Attributes(ctx context.Context, tenantID, deviceID string, keys []string) (platform.Attributes, error) {
	path := fmt.Sprintf(attributesPath, url.PathEscape(deviceID))
	return c.attributes(ctx, tenantID, "attributes", path, keys)
}

// IsOnline reads the configured server-side status attribute.
func (c *HTTPClient) IsOnline(ctx context.Context, tenantID, deviceID string) (bool, error) {
	path := fmt.Sprintf(serverAttrPath, url.PathEscape(deviceID))
	attrs, err := c.attributes(ctx, tenantID, "status", path, []string{c.cfg.StatusAttribute})
	if err != nil {
		return false, err
	}
	return truthy(attrs[c.cfg.StatusAttribute]), nil
}

// SendRPC posts an RPC. The deadline is rpc.Timeout when set, otherwise the
// client timeout.
func (c *HTTPClient) SendRPC(ctx context.Context, tenantID, deviceID string, rpc platform.RPC) (json.RawMessage, error) {
	timeout := rpc.Timeout
	if timeout <= 0 {
		timeout = c.cfg.timeout()
	}
	body := map[string]any{
		"method":  rpc.Method,
		"params":  rpc.Params,
		"timeout": timeout.Milliseconds(),
	}
	tmpl := rpcOneWayPath
	if rpc.TwoWay {
		tmpl = rpcTwoWayPath
	}
	var out json.RawMessage
	path := fmt.Sprintf(tmpl, url.PathEscape(deviceID))
	if err := c.do(ctx, tenantID, "rpc", http.MethodPost, path, nil, body, &out, timeout); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) attributes(ctx context.Context, tenantID, endpoint, path string, keys []string) (platform.Attributes, error) {
	q := url.Values{"keys": {strings.Join(keys, ",")}}
	var raw []struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := c.do(ctx, tenantID, endpoint, http.MethodGet, path, q, nil, &raw, 0); err != nil {
		return nil, err
	}
	attrs := make(platform.Attributes, len(raw))
	for _, a := range raw {
		attrs[a.Key] = a.Value
	}
	return attrs, nil
}

// do performs an authenticated call. A 401/403 drops the session and the
// call is retried once with a fresh token; a second rejection is ErrAuth.
func (c *HTTPClient) do(ctx context.Context, tenantID, endpoint, method, path string, q url.Values, body, out any, timeout time.Duration) error {
	tenant, err := c.tenants.Tenant(tenantID)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.timeout()
	}
	start := time.Now()
	defer func() { requestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	for attempt := 0; attempt < 2; attempt++ {
		tok, err := c.Token(ctx, tenantID)
		if err != nil {
			requestsTotal.WithLabelValues(endpoint, outcomeOf(err)).Inc()
			return err
		}
		status, data, err := c.sendWithTimeout(ctx, timeout, method, tenant.BaseURL, path, q, body, tok.Access)
		if err != nil {
			requestsTotal.WithLabelValues(endpoint, outcomeOf(err)).Inc()
			return err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			c.log.Warnf("%s %s rejected with status %d for tenant %s, refreshing session", method, path, status, tenantID)
			c.invalidateIfCurrent(tenantID, tok)
			continue
		}
		if status < 200 || status >= 300 {
			requestsTotal.WithLabelValues(endpoint, "status").Inc()
			return &platform.StatusError{Method: method, Path: path, Code: status, Body: truncate(data)}
		}
		requestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return decodeBody(data, out)
	}
	requestsTotal.WithLabelValues(endpoint, "auth").Inc()
	return fmt.Errorf("%w: %s %s rejected after session refresh", platform.ErrAuth, method, path)
}

func (c *HTTPClient) sendWithTimeout(ctx context.Context, timeout time.Duration, method, base, path string, q url.Values, body any, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.send(ctx, method, base, path, q, body, token)
}

func (c *HTTPClient) send(ctx context.Context, method, base, path string, q url.Values, body any, token string) (int, []byte, error) {
	u := strings.TrimSuffix(base, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", platform.ErrConnection, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classify(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debugf("close body: %v", cerr)
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, classify(err)
	}
	return resp.StatusCode, data, nil
}

// classify maps transport errors onto the platform taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", platform.ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", platform.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", platform.ErrConnection, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, platform.ErrAuth):
		return "auth"
	case errors.Is(err, platform.ErrTimeout):
		return "timeout"
	case errors.Is(err, platform.ErrConnection):
		return "connection"
	default:
		return "error"
	}
}

// decodeBody decodes data into out. An empty body leaves out untouched.
func decodeBody(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

type rawPoint struct {
	TS    int64           `json:"ts"`
	Value json.RawMessage `json:"value"`
}

func toTelemetry(raw map[string][]rawPoint) platform.Telemetry {
	t := make(platform.Telemetry, len(raw))
	for k, pts := range raw {
		out := make([]platform.Point, 0, len(pts))
		for _, p := range pts {
			out = append(out, platform.Point{TS: time.UnixMilli(p.TS), Value: rawString(p.Value)})
		}
		t[k] = out
	}
	return t
}

// rawString returns the unquoted form of a JSON string, or the literal text
// of any other JSON value.
func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x == 1
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "1"
	default:
		return false
	}
}
