package platform

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kilianp07/agrolink/core/platform"
)

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Token returns the cached session for the tenant, logging in when the cache
// is empty or the token is inside its safety buffer. Concurrent callers for
// the same tenant share a single login.
func (c *HTTPClient) Token(ctx context.Context, tenantID string) (platform.Token, error) {
	if tok, ok := c.cachedToken(tenantID); ok {
		return tok, nil
	}
	ch := c.logins.DoChan(tenantID, func() (any, error) {
		if tok, ok := c.cachedToken(tenantID); ok {
			return tok, nil
		}
		tenant, err := c.tenants.Tenant(tenantID)
		if err != nil {
			return platform.Token{}, err
		}
		// The login outlives a cancelled caller so that waiters still get a token.
		tok, err := c.login(context.WithoutCancel(ctx), tenant)
		if err != nil {
			return platform.Token{}, err
		}
		c.mu.Lock()
		c.tokens[tenantID] = tok
		c.mu.Unlock()
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return platform.Token{}, classify(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return platform.Token{}, res.Err
		}
		return res.Val.(platform.Token), nil
	}
}

// Invalidate drops the cached session of a tenant.
func (c *HTTPClient) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.tokens, tenantID)
	c.mu.Unlock()
}

func (c *HTTPClient) cachedToken(tenantID string) (platform.Token, bool) {
	c.mu.RLock()
	tok, ok := c.tokens[tenantID]
	c.mu.RUnlock()
	if !ok || !tok.ValidAt(c.now(), c.bufferFor(tok)) {
		return platform.Token{}, false
	}
	return tok, true
}

// invalidateIfCurrent drops stale only if no other request replaced it yet.
func (c *HTTPClient) invalidateIfCurrent(tenantID string, stale platform.Token) {
	c.mu.Lock()
	if cur, ok := c.tokens[tenantID]; ok && cur.Access == stale.Access {
		delete(c.tokens, tenantID)
	}
	c.mu.Unlock()
}

func (c *HTTPClient) login(ctx context.Context, tenant platform.Tenant) (platform.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()
	body := map[string]string{"username": tenant.Username, "password": tenant.Password}
	status, data, err := c.send(ctx, http.MethodPost, tenant.BaseURL, loginPath, nil, body, "")
	if err != nil {
		loginsTotal.WithLabelValues(outcomeOf(err)).Inc()
		return platform.Token{}, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		loginsTotal.WithLabelValues("auth").Inc()
		return platform.Token{}, fmt.Errorf("%w: tenant %s: credentials rejected", platform.ErrAuth, tenant.ID)
	}
	if status < 200 || status >= 300 {
		loginsTotal.WithLabelValues("status").Inc()
		return platform.Token{}, &platform.StatusError{Method: http.MethodPost, Path: loginPath, Code: status, Body: truncate(data)}
	}
	var resp loginResponse
	if err := decodeBody(data, &resp); err != nil {
		loginsTotal.WithLabelValues("decode").Inc()
		return platform.Token{}, err
	}
	if resp.Token == "" {
		loginsTotal.WithLabelValues("auth").Inc()
		return platform.Token{}, fmt.Errorf("%w: tenant %s: empty token in login response", platform.ErrAuth, tenant.ID)
	}
	loginsTotal.WithLabelValues("ok").Inc()
	c.log.Infof("logged in tenant %s", tenant.ID)
	tok := platform.Token{
		Access:    resp.Token,
		Refresh:   resp.RefreshToken,
		IssuedAt:  c.now(),
		ExpiresAt: c.expiry(resp.Token),
	}
	if tok.Lifetime() <= c.cfg.buffer() {
		c.log.Warnf("session of tenant %s lasts %s, shorter than the %s token buffer", tenant.ID, tok.Lifetime(), c.cfg.buffer())
	}
	return tok, nil
}

// bufferFor is the configured buffer, capped at half the token lifetime so
// that short sessions are still reused.
func (c *HTTPClient) bufferFor(tok platform.Token) time.Duration {
	buf := c.cfg.buffer()
	if half := tok.Lifetime() / 2; tok.Lifetime() > 0 && buf > half {
		return half
	}
	return buf
}

// expiry returns the token exp claim, bounded by the session lifetime.
// Opaque tokens get the full session lifetime.
func (c *HTTPClient) expiry(access string) time.Time {
	limit := c.now().Add(c.cfg.lifetime())
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil || claims.ExpiresAt == nil {
		return limit
	}
	if exp := claims.ExpiresAt.Time; exp.Before(limit) {
		return exp
	}
	return limit
}
