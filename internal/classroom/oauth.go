package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested at login. offline access (refresh token) is granted
// through the web client's consent flow, not a scope.
var defaultScopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/classroom.courses.readonly",
	"https://www.googleapis.com/auth/classroom.rosters.readonly",
	"https://www.googleapis.com/auth/classroom.coursework.students.readonly",
}

// postmessageRedirect is the special redirect URI for codes obtained via
// the browser popup flow (Google Identity Services code client).
const postmessageRedirect = "postmessage"

// userinfoURL is the identity provider's profile endpoint, used both for
// the initial identity snapshot and as the session validity probe.
const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Credentials is the portable credential bundle stored in the session
// cookie. A zero Expiry means the provider did not report one.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// OAuthClient exchanges authorization codes, refreshes credentials, and
// reads user identities. It is constructed from explicit configuration
// and holds no per-user state: credentials are always passed in and
// returned, never retained.
type OAuthClient struct {
	cfg         *oauth2.Config
	httpClient  *http.Client
	userinfoURL string
	logger      *slog.Logger
}

// NewOAuthClient creates an OAuth client for the Google endpoints.
func NewOAuthClient(clientID, clientSecret string, httpClient *http.Client, logger *slog.Logger) *OAuthClient {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OAuthClient{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  postmessageRedirect,
			Scopes:       defaultScopes,
			Endpoint:     google.Endpoint,
		},
		httpClient:  httpClient,
		userinfoURL: defaultUserinfoURL,
		logger:      logger,
	}
}

// context key for oauth2's HTTP client injection.
func (o *OAuthClient) oauthCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// Exchange trades an authorization code for credentials.
func (o *OAuthClient) Exchange(ctx context.Context, code string) (Credentials, error) {
	tok, err := o.cfg.Exchange(o.oauthCtx(ctx), code)
	if err != nil {
		return Credentials{}, fmt.Errorf("classroom: code exchange failed: %w", err)
	}

	o.logger.Info("exchanged authorization code",
		slog.Time("expiry", tok.Expiry),
		slog.Bool("has_refresh_token", tok.RefreshToken != ""),
	)

	return credentialsFromToken(tok), nil
}

// Refresh obtains a new access credential from a refresh credential.
// The refresh credential itself is preserved in the returned bundle even
// when the provider does not echo it back.
func (o *OAuthClient) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	src := o.cfg.TokenSource(o.oauthCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return Credentials{}, fmt.Errorf("classroom: token refresh failed: %w", err)
	}

	creds := credentialsFromToken(tok)
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}

	o.logger.Info("refreshed access credential", slog.Time("new_expiry", tok.Expiry))

	return creds, nil
}

// UserInfo fetches the identity behind an access credential. Doubles as
// the lightweight validity probe for session authentication: an
// ErrUnauthorized result means the access credential is expired or
// revoked.
func (o *OAuthClient) UserInfo(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userinfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("classroom: creating userinfo request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("classroom: userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return Identity{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var ui userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return Identity{}, fmt.Errorf("classroom: decoding userinfo: %w", err)
	}

	if ui.ID == "" {
		return Identity{}, fmt.Errorf("classroom: userinfo response missing user ID")
	}

	return ui.toIdentity(), nil
}

func credentialsFromToken(tok *oauth2.Token) Credentials {
	return Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
