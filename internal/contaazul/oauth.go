package contaazul

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"asaas-contaazul-relay/internal/config"
	"asaas-contaazul-relay/internal/db"
	"github.com/pkg/errors"
)

const (
	// Provider is the token-store provider tag for ContaAzul.
	Provider = "contaazul"

	defaultState = "random_state_123"
	// Cognito scopes with literal '+' separators, as ContaAzul expects them.
	authorizationScope = "openid+profile+aws.cognito.signin.user.admin"

	defaultExpiresInSeconds = 3600
)

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UpstreamAuthError is a non-2xx reply from the token endpoint, with the raw
// body kept for diagnostics.
type UpstreamAuthError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
}

type TokenStore interface {
	Replace(ctx context.Context, entity *db.OAuthTokenEntity) error
	GetByProvider(ctx context.Context, provider string) (*db.OAuthTokenEntity, error)
}

// OAuth manages the three-legged authorization-code flow against ContaAzul
// and the stored token's lifecycle.
type OAuth struct {
	authBase     string
	clientID     string
	clientSecret string
	redirectURI  string
	store        TokenStore
	client       *http.Client
	logger       *slog.Logger
}

func NewOAuth(cfg config.ContaAzul, store TokenStore, logger *slog.Logger) *OAuth {
	return &OAuth{
		authBase:     strings.TrimRight(cfg.AuthBaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		store:        store,
		client:       &http.Client{},
		logger:       logger,
	}
}

// BuildAuthorizationURL returns the URL the operator must visit to authorize
// the app. The scope separators stay literal '+', so the URL is assembled by
// hand rather than with url.Values.
func (o *OAuth) BuildAuthorizationURL(state string) string {
	if state == "" {
		state = defaultState
	}

	return fmt.Sprintf(
		"%s/oauth2/authorize?response_type=code&client_id=%s&redirect_uri=%s&state=%s&scope=%s",
		o.authBase, o.clientID, o.redirectURI, state, authorizationScope,
	)
}

// ExchangeCodeForToken trades an authorization code for an access and refresh
// token pair.
func (o *OAuth) ExchangeCodeForToken(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"redirect_uri":  {o.redirectURI},
		"code":          {code},
	}
	return o.postToken(ctx, form)
}

// RefreshAccessToken renews the access token from a refresh token. It is not
// invoked automatically when a stored token expires; expiry currently requires
// a manual pass through /oauth/authorize.
func (o *OAuth) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"refresh_token": {refreshToken},
	}
	return o.postToken(ctx, form)
}

func (o *OAuth) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	endpoint := o.authBase + "/oauth2/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "creating token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(o.clientID, o.clientSecret)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling token endpoint")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamAuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errors.Wrap(err, "unmarshalling token response")
	}
	return &token, nil
}

// PersistToken stores the token with replace semantics, computing expiry from
// expires_in (3600s when the provider omits it).
func (o *OAuth) PersistToken(ctx context.Context, token *TokenResponse) error {
	expiresIn := token.ExpiresIn
	if expiresIn == 0 {
		expiresIn = defaultExpiresInSeconds
	}
	expiresAt := time.Now().UTC().Add(time.Duration(expiresIn) * time.Second)

	entity := &db.OAuthTokenEntity{
		Provider:    Provider,
		AccessToken: token.AccessToken,
		ExpiresAt:   &expiresAt,
	}
	if token.RefreshToken != "" {
		entity.RefreshToken = &token.RefreshToken
	}

	return o.store.Replace(ctx, entity)
}

// GetValidToken returns the stored access token, or "" when none is stored or
// the stored one is past expiry. Expiry is detected, never repaired here: the
// caller is expected to send the operator back through the authorization flow.
func (o *OAuth) GetValidToken(ctx context.Context) (string, error) {
	entity, err := o.store.GetByProvider(ctx, Provider)
	if err != nil {
		return "", err
	}
	if entity == nil {
		return "", nil
	}

	if entity.ExpiresAt != nil && entity.ExpiresAt.Before(time.Now().UTC()) {
		o.logger.InfoContext(ctx, "Stored token expired, re-authorization required")
		return "", nil
	}

	return entity.AccessToken, nil
}
