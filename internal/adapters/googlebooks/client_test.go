package googlebooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchBuildsIntitleQuery(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":            r.URL.Query().Get("q"),
			"maxResults":   r.URL.Query().Get("maxResults"),
			"langRestrict": r.URL.Query().Get("langRestrict"),
			"printType":    r.URL.Query().Get("printType"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"abc","volumeInfo":{"title":"Rayuela","authors":["Julio Cortázar"],"imageLinks":{"smallThumbnail":"http://img/small"},"industryIdentifiers":[{"type":"ISBN_13","identifier":"9788437604572"}]}}]}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	volumes, err := client.Search(context.Background(), "Rayuela")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotQuery["q"] != "intitle:Rayuela" {
		t.Fatalf("expected intitle query, got %q", gotQuery["q"])
	}
	if gotQuery["maxResults"] != "10" || gotQuery["langRestrict"] != "es" || gotQuery["printType"] != "books" {
		t.Fatalf("unexpected query params: %v", gotQuery)
	}
	if len(volumes) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(volumes))
	}
	if volumes[0].Thumbnail != "http://img/small" {
		t.Fatalf("small thumbnail should be used as fallback, got %q", volumes[0].Thumbnail)
	}
	if volumes[0].ISBN != "9788437604572" {
		t.Fatalf("expected ISBN-13, got %q", volumes[0].ISBN)
	}
}

func TestLookupISBNNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	v, err := client.LookupISBN(context.Background(), "9780000000000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v.Title != "" || v.Description != "" {
		t.Fatalf("expected zero volume on no match, got %+v", v)
	}
}

func TestRateLimitAndUpstreamErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})

	_, err := client.Search(context.Background(), "anything")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	status = http.StatusInternalServerError
	_, err = client.Search(context.Background(), "anything")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestRandomBookFallsBackToOffsetZero(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("startIndex") == "0" {
			w.Write([]byte(`{"items":[{"volumeInfo":{"title":"Ficciones","authors":["Jorge Luis Borges"]}}]}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	v, err := client.RandomBook(context.Background())
	if err != nil {
		t.Fatalf("random book: %v", err)
	}
	if v.Title != "Ficciones" {
		t.Fatalf("expected a volume from the fallback page, got %+v", v)
	}
	if calls > 2 {
		t.Fatalf("expected at most two upstream calls, got %d", calls)
	}
}
