package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	cases := map[int]int{
		0:   DefaultReadLimit,
		-3:  1,
		1:   1,
		20:  20,
		50:  50,
		51:  MaxReadLimit,
		999: MaxReadLimit,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClampLimit(in), "limit %d", in)
	}
}

func TestResourcesWhitelist(t *testing.T) {
	assert.Len(t, Resources(), 10)
	assert.True(t, IsResource(ResourceHealthMetrics))
	assert.True(t, IsResource(ResourceProfile))
	assert.False(t, IsResource("passwords"))
	assert.False(t, IsResource(""))
}

func TestListRecordsBuildsBoundedQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"m1","record_date":"2026-08-25","weight_kg":81.2}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "tok")
	rows, err := client.ListRecords(context.Background(), ResourceHealthMetrics, ReadOptions{
		Limit: 500,
		From:  "2026-08-01",
		To:    "2026-08-25",
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0]["id"])
	assert.Equal(t, 81.2, rows[0]["weight_kg"])
	assert.Equal(t, "/api/v1/records/health_metrics", gotPath)
	assert.Contains(t, gotQuery, "limit=50", "limit must be clamped")
	assert.Contains(t, gotQuery, "from=2026-08-01")
	assert.Contains(t, gotQuery, "to=2026-08-25")
}

func TestListRecordsRejectsUnknownResourceLocally(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.ListRecords(context.Background(), "passwords", ReadOptions{})

	require.ErrorIs(t, err, ErrUnsupportedResource)
	assert.Contains(t, err.Error(), "passwords")
	assert.Zero(t, hits.Load(), "unsupported resources must not reach the wire")
}

func TestListRecordsSurfacesEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"no such user"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.ListRecords(context.Background(), ResourceConditions, ReadOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such user")
}

func TestListRecordsEmptyDataIsEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	rows, err := client.ListRecords(context.Background(), ResourceDailyLogs, ReadOptions{Date: "2026-08-25"})

	require.NoError(t, err)
	assert.Empty(t, rows)
}
