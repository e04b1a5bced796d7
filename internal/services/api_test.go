package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	tu "github.com/desertthunder/picasync/internal/testing"
)

func envelope(code int, message string, data any) []byte {
	raw, _ := json.Marshal(data)
	body, _ := json.Marshal(Envelope{Code: code, Message: message, Data: raw})
	return body
}

func newTestService(url string, session SessionFunc) *APIService {
	return NewAPIService(APIOpts{
		BaseURL: url,
		Signer:  NewSigner("key", "secret", "nonce"),
		Session: session,
	})
}

func TestSigner(t *testing.T) {
	t.Run("Sign Is Deterministic And Case Insensitive", func(t *testing.T) {
		s := NewSigner("Key", "secret", "nonce")
		a := s.Sign("categories", "1700000000", "GET")
		b := s.Sign("CATEGORIES", "1700000000", "get")

		if a != b {
			t.Errorf("expected lowercase normalization, got %s and %s", a, b)
		}
		if len(a) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(a))
		}
		if a == s.Sign("categories", "1700000001", "GET") {
			t.Error("expected time to change the signature")
		}
	})

	t.Run("Random Nonce When Empty", func(t *testing.T) {
		s := NewSigner("k", "s", "")
		if len(s.Nonce) != 32 || strings.Contains(s.Nonce, "-") {
			t.Errorf("unexpected nonce %q", s.Nonce)
		}
	})

	t.Run("Apply Sets Headers", func(t *testing.T) {
		s := NewSigner("k", "s", "n")
		h := http.Header{}
		now := time.Unix(1700000000, 0)
		s.Apply(h, "users/profile", http.MethodGet, HeaderOpts{Channel: "1", Platform: "android", Token: "tok", Quality: models.QualityHigh, Now: now})

		want := map[string]string{
			"time":          "1700000000",
			"nonce":         "n",
			"authorization": "tok",
			"image-quality": "high",
			"app-channel":   "1",
			"app-platform":  "android",
			"signature":     s.Sign("users/profile", "1700000000", http.MethodGet),
		}
		for k, v := range want {
			if got := h.Get(k); got != v {
				t.Errorf("header %s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("Apply Omits Empty Session Values", func(t *testing.T) {
		h := http.Header{}
		NewSigner("k", "s", "n").Apply(h, "categories", http.MethodGet, HeaderOpts{Now: time.Now()})
		if h.Get("authorization") != "" || h.Get("image-quality") != "" {
			t.Error("expected no authorization or image-quality headers")
		}
	})
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			srv := NewAPIService(APIOpts{})

			if srv.baseURL != models.Proxies[0].Value.API {
				t.Errorf("expected first proxy line, got %s", srv.baseURL)
			}
			if srv.channel != "1" || srv.platform != "android" {
				t.Errorf("unexpected app headers %s/%s", srv.channel, srv.platform)
			}
		})

		t.Run("Adds Trailing Slash", func(t *testing.T) {
			srv := NewAPIService(APIOpts{BaseURL: "http://example.com"})
			if srv.baseURL != "http://example.com/" {
				t.Errorf("expected trailing slash, got %s", srv.baseURL)
			}
		})

		t.Run("From Config Prefers Explicit Base URL", func(t *testing.T) {
			cfg := shared.DefaultConfig().API
			srv := NewAPIServiceFromConfig(cfg, "https://api.manhuabika.com/", nil, nil)
			if srv.baseURL != "https://api.manhuabika.com/" {
				t.Errorf("expected proxy override, got %s", srv.baseURL)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Signs Request", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/categories" {
					t.Errorf("expected path '/categories', got %s", r.URL.Path)
				}
				if r.Header.Get("authorization") != "tok" {
					t.Errorf("expected token header, got %q", r.Header.Get("authorization"))
				}
				if r.Header.Get("image-quality") != "low" {
					t.Errorf("expected quality header, got %q", r.Header.Get("image-quality"))
				}
				want := NewSigner("key", "secret", "nonce").Sign("categories", r.Header.Get("time"), http.MethodGet)
				if r.Header.Get("signature") != want {
					t.Error("signature does not match")
				}
				w.Write([]byte("ok"))
			}))
			defer server.Close()

			srv := newTestService(server.URL, func() (string, models.ImageQuality) { return "tok", models.QualityLow })
			resp, err := srv.Get(context.Background(), "/categories")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(resp.Body) != "ok" {
				t.Errorf("unexpected body %s", resp.Body)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
			srv := NewAPIService(APIOpts{BaseURL: "http://example.com", HTTPClient: client})

			_, err := srv.Get(context.Background(), "categories")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     http.Header{},
			}, nil)}
			srv := NewAPIService(APIOpts{BaseURL: "http://example.com", HTTPClient: client})

			_, err := srv.Get(context.Background(), "categories")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService(APIOpts{BaseURL: "http://example.com"})
			_, err := srv.Get(context.Background(), "test\x00invalid")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := newTestService(server.URL, nil).Get(ctx, "categories"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("SignIn", func(t *testing.T) {
		t.Run("Returns Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/auth/sign-in" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				body, _ := io.ReadAll(r.Body)
				var creds map[string]string
				json.Unmarshal(body, &creds)
				if creds["email"] != "a@b.c" || creds["password"] != "pw" {
					t.Errorf("unexpected credentials %v", creds)
				}
				w.Write(envelope(200, "success", map[string]string{"token": "tok"}))
			}))
			defer server.Close()

			token, err := newTestService(server.URL, nil).SignIn(context.Background(), "a@b.c", "pw")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "tok" {
				t.Errorf("expected token 'tok', got %q", token)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			_, err := NewAPIService(APIOpts{}).SignIn(context.Background(), "", "pw")
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Rejected Credentials", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write(envelope(400, "invalid email or password", nil))
			}))
			defer server.Close()

			_, err := newTestService(server.URL, nil).SignIn(context.Background(), "a@b.c", "bad")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Missing Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelope(200, "success", map[string]string{}))
			}))
			defer server.Close()

			_, err := newTestService(server.URL, nil).SignIn(context.Background(), "a@b.c", "pw")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})
	})

	t.Run("Profile", func(t *testing.T) {
		t.Run("Decodes User", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelope(200, "success", map[string]any{"user": map[string]any{"_id": "u1", "name": "Reader", "level": 3}}))
			}))
			defer server.Close()

			profile, err := newTestService(server.URL, nil).Profile(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if profile.ID != "u1" || profile.Name != "Reader" || profile.Level != 3 {
				t.Errorf("unexpected profile %+v", profile)
			}
		})

		t.Run("Logout Code", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelope(401, "unauthorized", nil))
			}))
			defer server.Close()

			_, err := newTestService(server.URL, nil).Profile(context.Background())
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("Unauthorized Status Without Envelope", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("nope"))
			}))
			defer server.Close()

			_, err := newTestService(server.URL, nil).Profile(context.Background())
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Categories", func(t *testing.T) {
		t.Run("Decodes List", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelope(200, "success", map[string]any{"categories": []map[string]any{{"title": "A"}, {"title": "B", "isWeb": true}}}))
			}))
			defer server.Close()

			cats, err := newTestService(server.URL, nil).Categories(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(cats) != 2 || cats[1].Title != "B" || !cats[1].IsWeb {
				t.Errorf("unexpected categories %+v", cats)
			}
		})

		t.Run("Unreadable Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			}))
			defer server.Close()

			_, err := newTestService(server.URL, nil).Categories(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("Rate Limit Waits", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(envelope(200, "success", map[string]any{"categories": []any{}}))
		}))
		defer server.Close()

		srv := NewAPIService(APIOpts{BaseURL: server.URL, RateLimit: 20})
		start := time.Now()
		for range 3 {
			if _, err := srv.Categories(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected pacing of about 50ms per request, took %v", elapsed)
		}
	})
}
