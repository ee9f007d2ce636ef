package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
)

const (
	DefaultAPIBase        = "https://discord.com/api/v10"
	defaultRequestTimeout = 5 * time.Second
	maxAuditReasonLen     = 512
)

// RESTModerator bans and kicks members through the Discord REST API.
type RESTModerator struct {
	httpPool    *HTTPPool
	rateLimiter *RateLimitMonitor
	token       string
	apiBase     string
	timeout     time.Duration

	// DeleteMessageSeconds is how much message history a ban removes.
	DeleteMessageSeconds int
}

func NewRESTModerator(token string, httpPool *HTTPPool, rateLimiter *RateLimitMonitor) *RESTModerator {
	return &RESTModerator{
		httpPool:    httpPool,
		rateLimiter: rateLimiter,
		token:       token,
		apiBase:     DefaultAPIBase,
		timeout:     defaultRequestTimeout,
	}
}

// WithAPIBase points the moderator at another API root.
func (m *RESTModerator) WithAPIBase(base string) *RESTModerator {
	if base != "" {
		m.apiBase = strings.TrimRight(base, "/")
	}
	return m
}

func (m *RESTModerator) WithTimeout(d time.Duration) *RESTModerator {
	if d > 0 {
		m.timeout = d
	}
	return m
}

func (m *RESTModerator) Ban(ctx context.Context, guildID, userID, reason string) error {
	body, err := json.Marshal(map[string]any{
		"delete_message_seconds": m.DeleteMessageSeconds,
	})
	if err != nil {
		return err
	}
	uri := fmt.Sprintf("%s/guilds/%s/bans/%s", m.apiBase, guildID, userID)
	return m.do(ctx, "ban", fasthttp.MethodPut, uri, guildID, userID, reason, body)
}

func (m *RESTModerator) Kick(ctx context.Context, guildID, userID, reason string) error {
	uri := fmt.Sprintf("%s/guilds/%s/members/%s", m.apiBase, guildID, userID)
	return m.do(ctx, "kick", fasthttp.MethodDelete, uri, guildID, userID, reason, nil)
}

func (m *RESTModerator) do(ctx context.Context, route, method, uri, guildID, userID, reason string, body []byte) error {
	if !m.rateLimiter.CanExecute(route, guildID) {
		return fmt.Errorf("%s %s: %w (retry in %s)", route, userID, models.ErrRateLimited, m.rateLimiter.RetryIn(route, guildID))
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+m.token)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(truncate(reason, maxAuditReasonLen)))
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	start := time.Now()
	if err := m.httpPool.GetClient().DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("%s %s: %w", route, userID, err)
	}
	m.rateLimiter.UpdateFromFastHTTPResponse(resp, route, guildID)

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		logging.Debug("[DISPATCH] %s of %s in %s took %s", route, userID, guildID, time.Since(start))
		return nil
	case status == fasthttp.StatusNotFound:
		return fmt.Errorf("%s %s: %w", route, userID, models.ErrNotFound)
	case status == fasthttp.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", route, userID, models.ErrRateLimited)
	default:
		return fmt.Errorf("%s %s failed: status %d: %s", route, userID, status, truncate(string(resp.Body()), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
