package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "juanperez", Slug("Juan Pérez"))
	assert.Equal(t, "maria", Slug("  María "))
	assert.Equal(t, "oconnor", Slug("O'Connor"))
	assert.Equal(t, "nunez", Slug("Núñez"))
}

func TestLocalCreator(t *testing.T) {
	c := NewLocalCreator()
	c.digits = func(int) (string, error) { return "1234", nil }

	acc, err := c.Create(context.Background(), Request{Name: "Juan Pérez", UsernameSuffix: "_line", FixedPassword: "Hola1234"})
	require.NoError(t, err)
	assert.Equal(t, "juanperez1234_line", acc.Username)
	assert.Equal(t, "Hola1234", acc.Password)
}

func TestLocalCreatorWithoutPassword(t *testing.T) {
	_, err := NewLocalCreator().Create(context.Background(), Request{Name: "Juan"})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestHTTPCreatorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Juan", req.Name)
		assert.Equal(t, "_line", req.UsernameSuffix)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true, "username": "juan1234_line", "password": req.FixedPassword,
		})
	}))
	defer srv.Close()

	c := NewHTTPCreator(srv.URL, "secret", time.Second)
	acc, err := c.Create(context.Background(), Request{Name: "Juan", UsernameSuffix: "_line", FixedPassword: "Hola1234"})
	require.NoError(t, err)
	assert.Equal(t, "juan1234_line", acc.Username)
	assert.Equal(t, "Hola1234", acc.Password)
}

func TestHTTPCreatorClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"reported anti-bot", http.StatusOK, `{"ok":false,"error":"cf","errorCategory":"anti-bot-block"}`, ErrAntiBotBlock},
		{"reported config", http.StatusOK, `{"ok":false,"error":"no admin","errorCategory":"config-missing"}`, ErrConfigMissing},
		{"unauthorized", http.StatusUnauthorized, `{"ok":false,"error":"bad creds"}`, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, `<html>challenge</html>`, ErrAntiBotBlock},
		{"overloaded", http.StatusServiceUnavailable, ``, ErrRetryLater},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPCreator(srv.URL, "", time.Second).Create(context.Background(), Request{Name: "Juan"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)

			var ce *CreateError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.status, ce.Status)
		})
	}
}

func TestHTTPCreatorGenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"boom"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPCreator(srv.URL, "", time.Second).Create(context.Background(), Request{Name: "Juan"})
	require.Error(t, err)
	assert.Equal(t, "generic", Category(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestHTTPCreatorWithoutURL(t *testing.T) {
	_, err := NewHTTPCreator("", "", time.Second).Create(context.Background(), Request{Name: "Juan"})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestHTTPCreatorFallsBackToFixedPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"username":"juan1234_line"}`))
	}))
	defer srv.Close()

	acc, err := NewHTTPCreator(srv.URL, "", time.Second).Create(context.Background(),
		Request{Name: "Juan", UsernameSuffix: "_line", FixedPassword: "Hola1234"})
	require.NoError(t, err)
	assert.Equal(t, "juan1234_line", acc.Username)
	assert.Equal(t, "Hola1234", acc.Password)
}

func TestHTTPCreatorNonJSONErrorKeepsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", 99) + "ñandú no disponible"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := NewHTTPCreator(srv.URL, "", time.Second).Create(context.Background(), Request{Name: "Juan"})
	var ce *CreateError
	require.True(t, errors.As(err, &ce))
	assert.True(t, utf8.ValidString(ce.Message))
	assert.Equal(t, strings.Repeat("a", 99)+"ñ", ce.Message)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hola", truncate("  hola  ", 10))
	assert.Equal(t, "año", truncate("años", 3))
	assert.Equal(t, "🙂🙂", truncate("🙂🙂🙂", 2))
}
