// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package registrar

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
)

// ManagementClient talks to the identity provider's management API using
// the client-credentials grant. It implements ScopeRegistry over the
// provider's resource-server scope collection.
//
// The scope collection is replaced wholesale by the provider's API, so both
// EnsureScope and RemoveScope read the current set, modify it, and PATCH it
// back. The registrar serializes intent handling, so no two mutations race.
type ManagementClient struct {
	httpClient   *http.Client
	issuerURL    string
	audience     string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewManagementClient creates a management client from the auth
// configuration. Returns nil when no management credentials are configured;
// the caller disables the registrar in that case.
func NewManagementClient(cfg *config.AuthConfig) *ManagementClient {
	if cfg.MgmtClientID == "" {
		return nil
	}
	return &ManagementClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		issuerURL:    strings.TrimSuffix(cfg.IssuerURL, "/"),
		audience:     cfg.Audience,
		clientID:     cfg.MgmtClientID,
		clientSecret: cfg.MgmtClientSecret,
	}
}

// providerScope is one scope entry on the provider's resource server.
type providerScope struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// EnsureScope implements ScopeRegistry.
func (c *ManagementClient) EnsureScope(ctx context.Context, scope, description string) error {
	scopes, err := c.fetchScopes(ctx)
	if err != nil {
		return err
	}

	for i, existing := range scopes {
		if existing.Value == scope {
			if existing.Description == description {
				return nil
			}
			scopes[i].Description = description
			return c.putScopes(ctx, scopes)
		}
	}

	scopes = append(scopes, providerScope{Value: scope, Description: description})
	return c.putScopes(ctx, scopes)
}

// RemoveScope implements ScopeRegistry.
func (c *ManagementClient) RemoveScope(ctx context.Context, scope string) error {
	scopes, err := c.fetchScopes(ctx)
	if err != nil {
		return err
	}

	kept := scopes[:0]
	removed := false
	for _, existing := range scopes {
		if existing.Value == scope {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	return c.putScopes(ctx, kept)
}

// resourceServerURL is the management endpoint for the API's scope set.
func (c *ManagementClient) resourceServerURL() string {
	return fmt.Sprintf("%s/api/v2/resource-servers/%s", c.issuerURL, url.PathEscape(c.audience))
}

// fetchScopes reads the current scope collection.
func (c *ManagementClient) fetchScopes(ctx context.Context) ([]providerScope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceServerURL(), http.NoBody)
	if err != nil {
		return nil, err
	}

	var body struct {
		Scopes []providerScope `json:"scopes"`
	}
	if err := c.do(ctx, req, &body); err != nil {
		return nil, err
	}
	return body.Scopes, nil
}

// putScopes replaces the scope collection.
func (c *ManagementClient) putScopes(ctx context.Context, scopes []providerScope) error {
	payload, err := json.Marshal(map[string]interface{}{"scopes": scopes})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.resourceServerURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req, nil)
}

// do attaches the management token, executes the request, and decodes the
// response.
func (c *ManagementClient) do(ctx context.Context, req *http.Request, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("management API returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// token returns a valid management access token, refreshing it via the
// client-credentials grant when expired.
func (c *ManagementClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"audience":      c.issuerURL + "/api/v2/",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.issuerURL+"/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = body.AccessToken
	// Refresh a minute early to avoid using a token at the expiry edge
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}
