package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginSendsDeviceUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "traveler", body["username"])
		require.Equal(t, "secret", body["password"])
		// 设备标识必须随登录请求一起上报
		require.Equal(t, "uuid-1234", body["device_uuid"])

		w.Write([]byte(`{"code": 0, "message": "ok", "data": {"access_token": "a", "refresh_token": "r", "expires_in": 3600}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Login("traveler", "secret", "uuid-1234")
	require.NoError(t, err)
	require.Equal(t, "a", resp.AccessToken)
	require.Equal(t, "r", resp.RefreshToken)
}

func TestMeUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Me("过期的token")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 1001, "message": "用户名或密码错误"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Login("traveler", "wrong", "uuid-1234")
	require.Error(t, err)
	require.Contains(t, err.Error(), "用户名或密码错误")
}
