package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/pkg/logger"
)

var (
	ErrNotConfigured = errors.New("keycloak not configured")
	ErrNoIDToken     = errors.New("token response carries no id_token")
)

// Claims are the verified ID token claims of a signed-in user.
type Claims = map[string]interface{}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// KeycloakClient signs users in against a Keycloak realm and returns the
// claims of the resulting ID token.
type KeycloakClient struct {
	cfg        config.KeycloakConfig
	httpClient *http.Client

	mu       sync.Mutex
	verifier idTokenVerifier
}

func NewKeycloakClient(cfg config.KeycloakConfig) *KeycloakClient {
	return &KeycloakClient{cfg: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (k *KeycloakClient) tokenURL() string {
	return k.cfg.Issuer() + "/protocol/openid-connect/token"
}

// PasswordLogin performs a resource-owner password grant.
func (k *KeycloakClient) PasswordLogin(ctx context.Context, username, password string) (Claims, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("scope", "openid")
	form.Set("username", username)
	form.Set("password", password)
	return k.login(ctx, form)
}

// ExchangeCode redeems an authorization code.
func (k *KeycloakClient) ExchangeCode(ctx context.Context, code, redirectURI string) (Claims, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return k.login(ctx, form)
}

func (k *KeycloakClient) login(ctx context.Context, form url.Values) (Claims, error) {
	if k.cfg.URL == "" || k.cfg.ClientID == "" {
		return nil, ErrNotConfigured
	}
	tr, err := k.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if tr.IDToken == "" {
		return nil, ErrNoIDToken
	}
	return k.verifyIDToken(ctx, tr.IDToken)
}

// requestToken posts the grant using client_secret_post and retries once with
// HTTP Basic client authentication when the realm answers 401.
func (k *KeycloakClient) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	form.Set("client_id", k.cfg.ClientID)
	if k.cfg.ClientSecret != "" {
		form.Set("client_secret", k.cfg.ClientSecret)
	}
	resp, err := k.postForm(ctx, form, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && k.cfg.ClientSecret != "" {
		_ = resp.Body.Close()
		logger.Warnf("keycloak: token request returned 401, retrying with basic client auth")
		form.Del("client_secret")
		if resp, err = k.postForm(ctx, form, true); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tr, nil
}

func (k *KeycloakClient) postForm(ctx context.Context, form url.Values, basic bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic {
		req.SetBasicAuth(k.cfg.ClientID, k.cfg.ClientSecret)
	}
	return k.httpClient.Do(req)
}

func (k *KeycloakClient) verifyIDToken(ctx context.Context, raw string) (Claims, error) {
	ver, err := k.idTokenVerifier(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := ver.claims(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	return claims, nil
}

// idTokenVerifier discovers the realm on first use. Discovery runs without
// holding k.mu; concurrent first logins may each discover and the first to
// finish is kept. Failures are not cached; with AllowInsecureToken they fall
// back to payload decoding.
func (k *KeycloakClient) idTokenVerifier(ctx context.Context) (idTokenVerifier, error) {
	k.mu.Lock()
	ver := k.verifier
	k.mu.Unlock()
	if ver != nil {
		return ver, nil
	}
	rv, err := discoverRealm(ctx, k.cfg.Issuer(), k.cfg.ClientID)
	if err != nil {
		if k.cfg.AllowInsecureToken {
			logger.Warnf("keycloak: %v; using insecure ID token verifier", err)
			return payloadOnly{}, nil
		}
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.verifier == nil {
		k.verifier = rv
	}
	return k.verifier, nil
}
