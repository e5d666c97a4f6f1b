package binding_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/artpar/channelgen/pkg/binding"
	"golang.org/x/oauth2"
)

// tokenServer issues access tokens from /token and accepts them on /api.
// Access tokens are numbered; only the latest one is accepted.
type tokenServer struct {
	mu     sync.Mutex
	issued int
	grants []string
	forms  []map[string]string
}

// seen returns the grant types and forms received so far.
func (s *tokenServer) seen() ([]string, []map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.grants...), append([]map[string]string(nil), s.forms...)
}

func (s *tokenServer) latest() string {
	return fmt.Sprintf("access-%d", s.issued)
}

func (s *tokenServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("token form: %v", err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.issued++
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		if id, _, ok := r.BasicAuth(); ok {
			form["basic_client_id"] = id
		}
		s.grants = append(s.grants, r.PostForm.Get("grant_type"))
		s.forms = append(s.forms, form)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"refresh-%d","expires_in":3600}`, s.latest(), s.issued)
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.latest()
		s.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	})
	return mux
}

func TestOAuth2_Flows(t *testing.T) {
	tests := []struct {
		name      string
		auth      func(tokenURL string) binding.Auth
		wantGrant string
		wantForm  map[string]string
	}{
		{
			name: "client credentials",
			auth: func(u string) binding.Auth {
				return binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{
					Flow: binding.FlowClientCredentials, TokenURL: u, ClientID: "app", ClientSecret: "s3cret", Scopes: []string{"read"},
				}}
			},
			wantGrant: "client_credentials",
			wantForm:  map[string]string{"scope": "read"},
		},
		{
			name: "password",
			auth: func(u string) binding.Auth {
				return binding.Auth{Scheme: binding.AuthOAuth2, Username: "ann", Password: "pw", OAuth2: &binding.OAuth2{
					Flow: binding.FlowPassword, TokenURL: u, ClientID: "app",
				}}
			},
			wantGrant: "password",
			wantForm:  map[string]string{"username": "ann", "password": "pw"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &tokenServer{}
			srv := httptest.NewServer(ts.handler(t))
			defer srv.Close()

			auth := tt.auth(srv.URL + "/token")
			if err := auth.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			var refreshed []*oauth2.Token
			auth.OAuth2.OnTokenRefresh = func(tok *oauth2.Token) { refreshed = append(refreshed, tok) }

			c := binding.HTTPClient{BaseURL: srv.URL, Method: http.MethodGet, Auth: auth, Retry: binding.NoRetry()}
			for i := 0; i < 2; i++ {
				if _, err := c.Do(context.Background(), binding.Outbound{Address: "/api"}); err != nil {
					t.Fatalf("Do #%d failed: %v", i, err)
				}
			}
			grants, forms := ts.seen()
			if len(grants) != 1 || grants[0] != tt.wantGrant {
				t.Fatalf("grants = %v, want one %s grant", grants, tt.wantGrant)
			}
			for k, v := range tt.wantForm {
				if forms[0][k] != v {
					t.Errorf("token form %s = %q, want %q", k, forms[0][k], v)
				}
			}
			if len(refreshed) != 1 || refreshed[0].AccessToken != "access-1" {
				t.Errorf("OnTokenRefresh got %v", refreshed)
			}
		})
	}
}

func TestOAuth2_RefreshOn401(t *testing.T) {
	ts := &tokenServer{}
	srv := httptest.NewServer(ts.handler(t))
	defer srv.Close()

	var refreshed []string
	auth := binding.Auth{
		Scheme: binding.AuthOAuth2,
		Token:  "stale",
		OAuth2: &binding.OAuth2{
			TokenURL:       srv.URL + "/token",
			ClientID:       "app",
			RefreshToken:   "refresh-0",
			OnTokenRefresh: func(tok *oauth2.Token) { refreshed = append(refreshed, tok.AccessToken) },
		},
	}
	c := binding.HTTPClient{BaseURL: srv.URL, Method: http.MethodGet, Auth: auth, Retry: binding.NoRetry()}

	d, err := c.Do(context.Background(), binding.Outbound{Address: "/api"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(d.Payload) != `{"ok":true}` {
		t.Errorf("payload = %s", d.Payload)
	}
	grants, forms := ts.seen()
	if len(grants) != 1 || grants[0] != "refresh_token" || forms[0]["refresh_token"] != "refresh-0" {
		t.Errorf("grants = %v forms = %v", grants, forms)
	}
	if len(refreshed) != 1 || refreshed[0] != "access-1" {
		t.Errorf("OnTokenRefresh got %v", refreshed)
	}

	// The next rejection refreshes with the newly issued refresh token.
	ts.mu.Lock()
	ts.issued++
	ts.mu.Unlock()
	if _, err := c.Do(context.Background(), binding.Outbound{Address: "/api"}); err != nil {
		t.Fatalf("second Do failed: %v", err)
	}
	_, forms = ts.seen()
	if got := forms[len(forms)-1]["refresh_token"]; got != "refresh-1" {
		t.Errorf("second refresh used %q, want refresh-1", got)
	}
}

func TestOAuth2_RefreshOnlyOnce(t *testing.T) {
	var tokenCalls, apiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new","token_type":"Bearer"}`)
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := binding.HTTPClient{
		BaseURL: srv.URL,
		Auth: binding.Auth{Scheme: binding.AuthOAuth2, Token: "old", OAuth2: &binding.OAuth2{
			Flow: binding.FlowClientCredentials, TokenURL: srv.URL + "/token", ClientID: "app",
		}},
		Retry: binding.NoRetry(),
	}
	_, err := c.Do(context.Background(), binding.Outbound{Address: "/api"})
	var se *binding.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	if tc, ac := atomic.LoadInt32(&tokenCalls), atomic.LoadInt32(&apiCalls); tc != 1 || ac != 2 {
		t.Errorf("token calls = %d, api calls = %d, want 1 and 2", tc, ac)
	}
}

func TestOAuth2_NoRefreshWithoutTokenURL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := binding.HTTPClient{BaseURL: srv.URL, Auth: binding.Auth{Scheme: binding.AuthOAuth2, Token: "at"}, Retry: binding.NoRetry()}
	if _, err := c.Do(context.Background(), binding.Outbound{Address: "/x"}); err == nil {
		t.Fatal("expected a 401 error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestAuth_Validate(t *testing.T) {
	tests := []struct {
		name    string
		auth    binding.Auth
		wantErr string
	}{
		{"static token", binding.Auth{Scheme: binding.AuthOAuth2, Token: "t"}, ""},
		{"refresh only", binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{RefreshToken: "r", TokenURL: "u", ClientID: "c"}}, ""},
		{"nothing to send", binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{}}, "requires a token"},
		{"client credentials without url", binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{Flow: binding.FlowClientCredentials, ClientID: "c"}}, "token URL"},
		{"password without user", binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{Flow: binding.FlowPassword, TokenURL: "u", ClientID: "c"}}, "username"},
		{"unknown flow", binding.Auth{Scheme: binding.AuthOAuth2, OAuth2: &binding.OAuth2{Flow: "implicit"}}, "unknown oauth2 flow"},
		{"other scheme", binding.Auth{Scheme: binding.AuthBasic}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.auth.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPClient_Hooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Signed") != "yes" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		fmt.Fprint(w, `{"v":1}`)
	}))
	defer srv.Close()

	var order []string
	wrapped := errors.New("wrapped")
	c := binding.HTTPClient{
		BaseURL: srv.URL,
		Retry:   binding.NoRetry(),
		Hooks: binding.Hooks{
			BeforeRequest: func(req *http.Request) error {
				order = append(order, "before")
				req.Header.Set("X-Signed", "yes")
				return nil
			},
			AfterResponse: func(resp *http.Response, body []byte) ([]byte, error) {
				order = append(order, fmt.Sprintf("after %d", resp.StatusCode))
				if resp.StatusCode == http.StatusOK {
					return []byte(`{"v":2}`), nil
				}
				return body, nil
			},
			OnError: func(err error, out binding.Outbound) error {
				order = append(order, "error "+out.Address)
				return fmt.Errorf("%w: %w", wrapped, err)
			},
		},
	}

	d, err := c.Do(context.Background(), binding.Outbound{Address: "/ok"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(d.Payload) != `{"v":2}` {
		t.Errorf("payload = %s, want the body from AfterResponse", d.Payload)
	}

	_, err = c.Do(context.Background(), binding.Outbound{Address: "/fail"})
	var se *binding.StatusError
	if !errors.Is(err, wrapped) || !errors.As(err, &se) || se.StatusCode != http.StatusTeapot {
		t.Errorf("err = %v", err)
	}

	want := "before,after 200,before,after 418,error /fail"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("hook order = %s, want %s", got, want)
	}
}
