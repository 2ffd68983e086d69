package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/gateway"
	apperrors "github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/internal/utils"
	"github.com/jrsteele09/go-medassist-client/token"
	"github.com/jrsteele09/go-medassist-client/token/refresh"
	"github.com/jrsteele09/go-medassist-client/token/repofake"
	"github.com/stretchr/testify/require"
)

// backend accepts exactly one bearer token at a time and records what it saw.
type backend struct {
	mu       sync.Mutex
	valid    string
	requests []record
	always   int // when non-zero every /things call returns this status
}

type record struct {
	path      string
	bearer    string
	body      string
	requestID string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	b.requests = append(b.requests, record{path: r.URL.Path, bearer: auth, body: string(body), requestID: r.Header.Get("X-Request-Id")})
	valid, always := b.valid, b.always
	b.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/api/auth/"):
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(apimodel.ErrorResponse{Error: "bad credentials"})
	case always != 0:
		w.WriteHeader(always)
	case auth != valid:
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(apimodel.ErrorResponse{Error: "token expired"})
	default:
		_, _ = w.Write(body)
	}
}

func (b *backend) setValid(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valid = tok
}

func (b *backend) seen() []record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]record(nil), b.requests...)
}

// fakeRefresher rotates to acc-1, acc-2, ... and tells the backend about the new token.
type fakeRefresher struct {
	calls   atomic.Int32
	backend *backend
	err     error
	delay   time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*apimodel.AuthResponse, error) {
	n := f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	tok := fmt.Sprintf("acc-%d", n)
	f.backend.setValid(tok)
	return &apimodel.AuthResponse{
		Token:        tok,
		RefreshToken: utils.Ptr(fmt.Sprintf("ref-%d", n)),
		TokenExpires: utils.Ptr(apimodel.FormatTimestamp(time.Now().Add(time.Hour))),
	}, nil
}

type harness struct {
	srv       *httptest.Server
	backend   *backend
	store     *token.Store
	refresher *fakeRefresher
	gw        *gateway.Gateway
	expired   atomic.Int32
}

func newHarness(t *testing.T, expiresIn time.Duration, refreshToken string) *harness {
	t.Helper()
	h := &harness{backend: &backend{valid: "acc-0"}}
	h.srv = httptest.NewServer(h.backend)
	t.Cleanup(h.srv.Close)

	var err error
	h.store, err = token.NewStore(repofake.NewFakeRepo())
	require.NoError(t, err)
	require.NoError(t, h.store.SaveCredentials(token.Credentials{
		AccessToken:  "acc-0",
		RefreshToken: refreshToken,
		ExpiresAt:    utils.Ptr(time.Now().Add(expiresIn)),
	}))

	h.refresher = &fakeRefresher{backend: h.backend}
	coord, err := refresh.New(h.store, h.refresher)
	require.NoError(t, err)

	h.gw, err = gateway.New(gateway.NewHTTPClient(5*time.Second), h.store, coord,
		gateway.WithExpireHandler(func(reason error) {
			h.expired.Add(1)
			_ = h.store.ClearAll()
		}))
	require.NoError(t, err)
	return h
}

func (h *harness) post(t *testing.T, path, body string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, io.NopCloser(strings.NewReader(body)))
	require.NoError(t, err)
	return h.gw.Do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestNew_RequiresDependencies(t *testing.T) {
	store, err := token.NewStore(repofake.NewFakeRepo())
	require.NoError(t, err)
	coord, err := refresh.New(store, &fakeRefresher{})
	require.NoError(t, err)

	_, err = gateway.New(nil, store, coord)
	require.Error(t, err)
	_, err = gateway.New(http.DefaultClient, nil, coord)
	require.Error(t, err)
	_, err = gateway.New(http.DefaultClient, store, nil)
	require.Error(t, err)
}

func TestIsAuthEndpoint(t *testing.T) {
	require.True(t, gateway.IsAuthEndpoint("/api/auth/login"))
	require.True(t, gateway.IsAuthEndpoint("/api/auth/telegram-login-poll/abc"))
	require.False(t, gateway.IsAuthEndpoint("/api/users/1/medications"))
	require.False(t, gateway.IsAuthEndpoint("/api/authors"))
}

func TestGateway_AttachesBearerAndRequestID(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")

	resp, err := h.post(t, "/api/things", `{"a":1}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{"a":1}`, readBody(t, resp))

	got := h.backend.seen()
	require.Len(t, got, 1)
	require.Equal(t, "acc-0", got[0].bearer)
	require.NotEmpty(t, got[0].requestID)
	require.Equal(t, int32(0), h.refresher.calls.Load())
}

func TestGateway_AuthEndpointsKeepBearerButSkipRenewal(t *testing.T) {
	// token is about to expire, so a non-auth call would renew first
	h := newHarness(t, 10*time.Second, "ref-0")

	resp, err := h.post(t, "/api/auth/revoke-all", "")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	got := h.backend.seen()
	require.Len(t, got, 1)
	require.Equal(t, "acc-0", got[0].bearer)
	require.Equal(t, int32(0), h.refresher.calls.Load())
	require.Equal(t, int32(0), h.expired.Load())
	require.Equal(t, "acc-0", h.store.AccessToken())
}

func TestGateway_ProactiveRenewal(t *testing.T) {
	h := newHarness(t, 30*time.Second, "ref-0")

	resp, err := h.post(t, "/api/things", "x")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Equal(t, int32(1), h.refresher.calls.Load())
	got := h.backend.seen()
	require.Len(t, got, 1)
	require.Equal(t, "acc-1", got[0].bearer)
	require.Equal(t, "ref-1", h.store.RefreshToken())
}

func TestGateway_ProactiveFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, 30*time.Second, "ref-0")
	h.refresher.err = errors.New("backend down")

	resp, err := h.post(t, "/api/things", "x")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Equal(t, int32(1), h.refresher.calls.Load())
	require.Equal(t, "acc-0", h.backend.seen()[0].bearer)
	require.Equal(t, int32(0), h.expired.Load())
}

func TestGateway_SilentRenewalOn401(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")
	h.backend.setValid("rotated-elsewhere")

	resp, err := h.post(t, "/api/things", `{"medicationId":"m1"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{"medicationId":"m1"}`, readBody(t, resp))

	got := h.backend.seen()
	require.Len(t, got, 2)
	require.Equal(t, "acc-0", got[0].bearer)
	require.Equal(t, "acc-1", got[1].bearer)
	require.Equal(t, got[0].body, got[1].body)
	require.Equal(t, int32(1), h.refresher.calls.Load())
	require.Equal(t, "acc-1", h.store.AccessToken())
	require.Equal(t, "ref-1", h.store.RefreshToken())
}

func TestGateway_ConcurrentRejectionsShareOneRenewal(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")
	h.backend.setValid("server-restarted")
	h.refresher.delay = 50 * time.Millisecond

	const n = 3
	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.post(t, fmt.Sprintf("/api/things/%d", i), "")
			errs[i] = err
			if err == nil {
				statuses[i] = resp.StatusCode
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), h.refresher.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.Equal(t, int32(0), h.expired.Load())
}

func TestGateway_RenewalFailureExpiresSession(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")
	h.backend.setValid("nothing-matches")
	h.refresher.err = errors.New("refresh token revoked")
	h.refresher.delay = 50 * time.Millisecond

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.post(t, "/api/things", "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		require.True(t, apperrors.Is(err, apperrors.ErrRenewalFailed) || apperrors.Is(err, apperrors.ErrSessionExpired) ||
			apperrors.Is(err, apperrors.ErrNoRefreshToken), err.Error())
	}
	require.GreaterOrEqual(t, h.expired.Load(), int32(1))
	require.Empty(t, h.store.AccessToken())
	require.False(t, h.store.HasRefreshToken())
}

func TestGateway_401WithoutRefreshToken(t *testing.T) {
	h := newHarness(t, time.Hour, "")
	h.backend.setValid("other")

	_, err := h.post(t, "/api/things", "")
	require.True(t, apperrors.Is(err, apperrors.ErrSessionExpired))
	require.Equal(t, int32(1), h.expired.Load())
	require.Equal(t, int32(0), h.refresher.calls.Load())
	require.Empty(t, h.store.AccessToken())
}

func TestGateway_ReplayIsNotRetriedAgain(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")
	h.backend.always = http.StatusUnauthorized

	resp, err := h.post(t, "/api/things", "")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, h.backend.seen(), 2)
	require.Equal(t, int32(1), h.refresher.calls.Load())
}

func TestGateway_OtherStatusesPassThrough(t *testing.T) {
	h := newHarness(t, time.Hour, "ref-0")
	h.backend.always = http.StatusForbidden

	resp, err := h.post(t, "/api/things", "")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, int32(0), h.refresher.calls.Load())
}

func TestGateway_RawSkipsCredentials(t *testing.T) {
	h := newHarness(t, 10*time.Second, "ref-0")

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/things", nil)
	require.NoError(t, err)
	resp, err := h.gw.Raw().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	got := h.backend.seen()
	require.Len(t, got, 1)
	require.Empty(t, got[0].bearer)
	require.NotEmpty(t, got[0].requestID)
	require.Equal(t, int32(0), h.refresher.calls.Load())
	require.Empty(t, req.Header.Get("X-Request-Id"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) gateway.Middleware {
		return func(next gateway.Doer) gateway.Doer {
			return gateway.DoerFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.Do(req)
			})
		}
	}
	base := gateway.DoerFunc(func(req *http.Request) (*http.Response, error) {
		order = append(order, "transport")
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := gateway.Chain(base, mark("a"), mark("b")).Do(req)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "transport"}, order)
}
