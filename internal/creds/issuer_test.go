package creds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"seed":"SUAKEY","url":"nats://127.0.0.1:4222","expiresAt":9999999999999,"ttlMs":3600000}`))
	}))
	defer srv.Close()

	grant, err := NewIssuer(srv.URL).Issue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if grant.Seed != "SUAKEY" || grant.URL != "nats://127.0.0.1:4222" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if grant.Expired(time.Now()) {
		t.Fatal("grant should not be expired")
	}
}

func TestIssueFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{"server error", `{"error":"boom"}`, http.StatusInternalServerError},
		{"malformed body", `not json`, http.StatusOK},
		{"empty seed", `{"seed":"","url":"nats://x"}`, http.StatusOK},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
			w.Write([]byte(tc.body))
		}))
		if _, err := NewIssuer(srv.URL).Issue(context.Background()); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		srv.Close()
	}
}

func TestGrantExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	g := Grant{ExpiresAt: now.UnixMilli()}
	if !g.Expired(now) {
		t.Fatal("grant at its expiry instant is expired")
	}
	g.ExpiresAt = now.UnixMilli() + 1
	if g.Expired(now) {
		t.Fatal("grant before expiry is not expired")
	}
}
