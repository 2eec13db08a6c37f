package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/rest"
)

func TestClient_GetJSONSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/things", r.URL.Path)
		assert.Equal(t, "a", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"name": "thing"}`)
	}))
	defer srv.Close()

	c, err := rest.New(srv.URL+"/", rest.WithHeader("Authorization", "Bearer tok"), rest.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	var out struct{ Name string }
	require.NoError(t, c.GetJSON(context.Background(), "/v1/things", url.Values{"q": {"a"}}, &out))
	assert.Equal(t, "thing", out.Name)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := rest.New(srv.URL)
	require.NoError(t, err)

	err = c.GetJSON(context.Background(), "missing", url.Values{"apikey": {"secret"}}, nil)
	require.Error(t, err)
	assert.True(t, rest.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, rest.StatusCode(err))
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "HTTP 404: nope")
}

func TestClient_AcceptedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com/#access_token=x")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c, err := rest.New(srv.URL, rest.WithHTTPClient(&http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), rest.Request{Path: "auth", Accept: []int{http.StatusFound}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "access_token")
}

func TestClient_URL(t *testing.T) {
	c, err := rest.New("https://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/a/b", c.URL("a/b", nil))
	assert.Equal(t, "https://other/x?k=v", c.URL("https://other/x", url.Values{"k": {"v"}}))
	assert.Equal(t, "https://api.example.com/a?x=1&k=v", c.URL("a?x=1", url.Values{"k": {"v"}}))
	assert.Equal(t, "https://api.example.com", c.BaseURL())
	assert.Equal(t, 0, rest.StatusCode(assert.AnError))
}
