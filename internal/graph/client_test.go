package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/me/drive" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"drive-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1.0/", srv.Client())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.GetJSON(context.Background(), "/me/drive", &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "drive-1" {
		t.Errorf("ID = %q", out.ID)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"itemNotFound"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	err := c.GetJSON(context.Background(), "me/drive/items/x", &struct{}{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound || se.Method != http.MethodGet {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestPatchJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	body := map[string]any{"values": [][]string{{"x"}}}
	if err := c.PatchJSON(context.Background(), "range", body, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["values"]; !ok {
		t.Errorf("body = %v", got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("JPEGDATA"))
	}))
	defer srv.Close()

	c := NewClient("https://graph.example", srv.Client())
	var buf bytes.Buffer
	if err := c.Fetch(context.Background(), srv.URL+"/download?sig=1", &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "JPEGDATA" {
		t.Errorf("body = %q", buf.String())
	}
}

func TestURL(t *testing.T) {
	c := NewClient("https://graph.microsoft.com/v1.0", nil)
	if got := c.URL("me/drive"); got != "https://graph.microsoft.com/v1.0/me/drive" {
		t.Errorf("URL = %q", got)
	}
	next := "https://graph.microsoft.com/v1.0/me/drive/root/children?$skiptoken=abc"
	if got := c.URL(next); got != next {
		t.Errorf("absolute URL rewritten to %q", got)
	}
}

func TestPathSegment(t *testing.T) {
	got := PathSegment("/Documents/Social Media/posts#1.xlsx")
	want := "/Documents/Social%20Media/posts%231.xlsx"
	if got != want {
		t.Errorf("PathSegment = %q, want %q", got, want)
	}
}
