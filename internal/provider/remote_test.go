package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"navigation-platform/internal/directions"
)

func testQuery() (directions.RouteQuery, directions.Credentials) {
	return directions.RouteQuery{
		Profile: "nav/driving-traffic",
		Coordinates: []directions.Coordinate{
			{Longitude: 13.418946, Latitude: 52.500055},
			{Longitude: 13.426012, Latitude: 52.499893},
		},
		Alternatives: true,
	}, directions.Credentials{AccessToken: "tok"}
}

func TestRemoteProvider_ComputeRoute(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		w.Write([]byte(`{"code":"Ok","uuid":"abc","routes":[{"distance":10,"duration":5}]}`))
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, slog.Default())
	q, creds := testQuery()
	res, err := p.ComputeRoute(context.Background(), q, creds)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.ID != "abc" || len(res.Routes) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(gotPath, "/directions/v5/nav/driving-traffic/") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotToken != "tok" {
		t.Fatalf("access token not forwarded, got %q", gotToken)
	}
}

func TestRemoteProvider_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, slog.Default())
	q, creds := testQuery()
	if _, err := p.ComputeRoute(context.Background(), q, creds); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestRemoteProvider_DecodeFailureSurfacesErrDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoSegment","routes":[]}`))
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, slog.Default())
	q, creds := testQuery()
	_, err := p.ComputeRoute(context.Background(), q, creds)
	if !errors.Is(err, directions.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestRemoteProvider_HonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewRemoteProvider(srv.URL, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, creds := testQuery()
	_, err := p.ComputeRoute(ctx, q, creds)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOnboardProvider_NotImplemented(t *testing.T) {
	p := NewOnboardProvider("")
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure without tile path")
	}
	q, creds := testQuery()
	if _, err := p.ComputeRoute(context.Background(), q, creds); err == nil {
		t.Fatal("expected not-implemented error")
	}
}
