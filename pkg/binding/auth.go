package binding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthScheme selects how credentials are attached to HTTP requests.
type AuthScheme string

const (
	AuthNone   AuthScheme = ""
	AuthBearer AuthScheme = "bearer"
	AuthBasic  AuthScheme = "basic"
	AuthAPIKey AuthScheme = "apiKey"
	AuthOAuth2 AuthScheme = "oauth2"
)

// Auth holds credentials for one scheme. OAuth2 sends Token as is unless
// OAuth2 configures a token endpoint.
type Auth struct {
	Scheme   AuthScheme
	Token    string
	Username string
	Password string

	APIKey     string
	APIKeyName string // header or query parameter name, default X-API-Key
	APIKeyIn   string // "header" (default) or "query"

	OAuth2 *OAuth2
}

// OAuth2Flow is the grant used to obtain an access token.
type OAuth2Flow string

const (
	FlowNone              OAuth2Flow = ""
	FlowClientCredentials OAuth2Flow = "client_credentials"
	FlowPassword          OAuth2Flow = "password"
)

// ErrNoRefresh is returned when a rejected token cannot be replaced.
var ErrNoRefresh = errors.New("oauth2: no refresh token or flow configured")

// OAuth2 obtains and refreshes access tokens against TokenURL. The password
// flow takes the resource owner credentials from Auth.Username and
// Auth.Password. A token held in Auth.Token is used until the server rejects
// it. Share one *OAuth2 between clients to share its tokens.
type OAuth2 struct {
	Flow         OAuth2Flow
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	RefreshToken string
	// OnTokenRefresh receives every token issued by the token endpoint.
	OnTokenRefresh func(*oauth2.Token)

	mu      sync.Mutex
	current *oauth2.Token
}

// Validate reports configuration that cannot produce a token.
func (a Auth) Validate() error {
	if a.Scheme != AuthOAuth2 || a.OAuth2 == nil {
		return nil
	}
	o := a.OAuth2
	switch o.Flow {
	case FlowClientCredentials, FlowPassword:
		if o.TokenURL == "" || o.ClientID == "" {
			return fmt.Errorf("oauth2 %s flow requires a token URL and client ID", o.Flow)
		}
		if o.Flow == FlowPassword && (a.Username == "" || a.Password == "") {
			return errors.New("oauth2 password flow requires a username and password")
		}
	case FlowNone:
		if a.Token == "" && o.RefreshToken == "" {
			return errors.New("oauth2 requires a token, a refresh token or a flow")
		}
	default:
		return fmt.Errorf("unknown oauth2 flow %q", o.Flow)
	}
	return nil
}

// Apply attaches the credentials to req. An OAuth2 token is fetched with
// req's context when none is held yet.
func (a Auth) Apply(req *http.Request) error {
	switch a.Scheme {
	case AuthNone:
		return nil
	case AuthOAuth2:
		if a.OAuth2 != nil {
			tok, err := a.OAuth2.accessToken(req.Context(), a)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+tok)
			return nil
		}
		fallthrough
	case AuthBearer:
		if a.Token == "" {
			return fmt.Errorf("%s auth: token is empty", a.Scheme)
		}
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthAPIKey:
		name := a.APIKeyName
		if name == "" {
			name = "X-API-Key"
		}
		if a.APIKeyIn == "query" {
			appendQuery(req, name, a.APIKey)
			return nil
		}
		req.Header.Set(name, a.APIKey)
	default:
		return fmt.Errorf("unknown auth scheme %q", a.Scheme)
	}
	return nil
}

// refreshable reports whether a 401 can be answered with a new token.
func (a Auth) refreshable() bool {
	return a.Scheme == AuthOAuth2 && a.OAuth2 != nil && a.OAuth2.TokenURL != ""
}

func (o *OAuth2) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
		Scopes:       o.Scopes,
	}
}

func (o *OAuth2) accessToken(ctx context.Context, a Auth) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil && a.Token != "" {
		o.current = &oauth2.Token{AccessToken: a.Token, RefreshToken: o.RefreshToken}
	}
	if o.current == nil || o.current.AccessToken == "" {
		if err := o.renew(ctx, a); err != nil {
			return "", err
		}
	}
	return o.current.AccessToken, nil
}

// refresh replaces a token the server rejected.
func (o *OAuth2) refresh(ctx context.Context, a Auth) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.renew(ctx, a)
}

// renew prefers the refresh grant and falls back to the configured flow.
// o.mu must be held.
func (o *OAuth2) renew(ctx context.Context, a Auth) error {
	refreshToken := o.RefreshToken
	if o.current != nil && o.current.RefreshToken != "" {
		refreshToken = o.current.RefreshToken
	}

	var (
		tok *oauth2.Token
		err error
	)
	switch {
	case refreshToken != "" && o.TokenURL != "":
		tok, err = o.config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	case o.Flow == FlowClientCredentials:
		cc := clientcredentials.Config{ClientID: o.ClientID, ClientSecret: o.ClientSecret, TokenURL: o.TokenURL, Scopes: o.Scopes}
		tok, err = cc.Token(ctx)
	case o.Flow == FlowPassword:
		tok, err = o.config().PasswordCredentialsToken(ctx, a.Username, a.Password)
	default:
		return ErrNoRefresh
	}
	if err != nil {
		return fmt.Errorf("oauth2 token: %w", err)
	}

	o.current = tok
	if o.OnTokenRefresh != nil {
		o.OnTokenRefresh(tok)
	}
	return nil
}
