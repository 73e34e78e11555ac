package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL: srv.URL,
		Tokens:  TokenSourceFunc(func() string { return "tok-123" }),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, srv
}

func TestGetSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"success":true,"data":[1,2]}`))
	}), nil)

	resp, err := client.Get(context.Background(), "/eventos/", url.Values{"offset": {"20"}, "limit": {"20"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
	if gotQuery != "limit=20&offset=20" {
		t.Fatalf("query = %q", gotQuery)
	}

	env, err := resp.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if !env.Success || string(env.Data) != "[1,2]" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestEmptyTokenOmitsAuthHeader(t *testing.T) {
	var sawAuth bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}), func(cfg *Config) {
		cfg.Tokens = TokenSourceFunc(func() string { return "" })
	})

	if _, err := client.Get(context.Background(), "/health", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sawAuth {
		t.Fatal("Authorization header sent without a token")
	}
}

func TestPostMarshalsJSONBody(t *testing.T) {
	var gotType, gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{}`))
	}), nil)

	_, err := client.Post(context.Background(), "/auth/login", map[string]string{"cedula": "C-1"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotType != "application/json" {
		t.Fatalf("Content-Type = %q", gotType)
	}
	if gotBody != `{"cedula":"C-1"}` {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestErrorResponseParsing(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantCode   string
		wantStatus int
	}{
		{"envelope message", 422, `{"success":false,"message":"datos inválidos"}`, "datos inválidos", "", 422},
		{"detail field", 404, `{"detail":"no encontrado"}`, "no encontrado", "", 404},
		{"error field with code", 401, `{"error":"expirado","code":"SESSION_EXPIRED"}`, "expirado", "SESSION_EXPIRED", 401},
		{"non-JSON body", 502, `Bad Gateway`, "Bad Gateway", "", 502},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}), nil)

			_, err := client.Get(context.Background(), "/x", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want APIError", err)
			}
			if apiErr.Status != tc.wantStatus || apiErr.Message != tc.wantMsg || apiErr.Code != tc.wantCode {
				t.Fatalf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestRequestTimeoutClassification(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), func(cfg *Config) {
		cfg.Timeout = 30 * time.Millisecond
	})

	_, err := client.Get(context.Background(), "/slow", nil)
	if !IsTimeout(err) {
		t.Fatalf("err = %v, want timeout classification", err)
	}
	if IsUnreachable(err) {
		t.Fatal("timeout misclassified as unreachable")
	}
}

func TestCallerCancellationPassesThrough(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Get(ctx, "/slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestUnreachableClassification(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Get(context.Background(), "/x", nil)
	if !IsUnreachable(err) {
		t.Fatalf("err = %v, want unreachable classification", err)
	}
}

func TestPostMultipart(t *testing.T) {
	var gotField, gotFile, gotFilename string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotField = r.FormValue("id_evento")
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		buf := make([]byte, header.Size)
		file.Read(buf)
		gotFile = string(buf)
		gotFilename = header.Filename
		w.Write([]byte(`{}`))
	}), nil)

	_, err := client.PostMultipart(context.Background(), "/marcaciones/facial",
		map[string]string{"id_evento": "7"},
		[]FormFile{{Field: "photo", Name: "capture.jpg", Content: []byte("jpegdata")}})
	if err != nil {
		t.Fatalf("PostMultipart: %v", err)
	}
	if gotField != "7" || gotFile != "jpegdata" || gotFilename != "capture.jpg" {
		t.Fatalf("multipart parts = %q %q %q", gotField, gotFile, gotFilename)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Get(context.Background(), "/health", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/health" {
		t.Fatalf("path = %q", gotPath)
	}
}
