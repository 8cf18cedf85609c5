package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/queue/stats" {
			t.Errorf("path = %q, want /api/queue/stats", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pending":3,"in_progress":2,"completed":40,"failed":1,"total":46}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	stats, err := c.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("FetchStats() err = %v", err)
	}
	if stats.Pending != 3 || stats.InProgress != 2 || stats.Total != 46 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFetchRecentJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" {
			t.Errorf("path = %q, want /api/jobs", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "1" || q.Get("page_size") != "5" {
			t.Errorf("pagination params = %v", q)
		}
		if q.Get("sort_by") != "created_at" || q.Get("order") != "desc" {
			t.Errorf("sort params = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"id":2,"status":"in_progress"},{"id":1,"status":"completed"}],"total":2,"page":1,"page_size":5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	page, err := c.FetchRecentJobs(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("FetchRecentJobs() err = %v", err)
	}
	if len(page.Jobs) != 2 || page.Jobs[0].ID != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestFetchErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.FetchStats(context.Background()); err == nil {
		t.Error("FetchStats() err = nil on 503")
	}
	if _, err := c.FetchRecentJobs(context.Background(), 1, 5); err == nil {
		t.Error("FetchRecentJobs() err = nil on 503")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.FetchStats(context.Background()); err == nil {
		t.Error("FetchStats() err = nil on malformed body")
	}
}
