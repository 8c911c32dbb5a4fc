package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/persistence"
	"github.com/lexcodex/fitcoach/retry"
)

func newTestStub(t *testing.T) (*StubServer, *httptest.Server) {
	t.Helper()
	stub := NewStubServer(persistence.NewMemoryStore())
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return stub, srv
}

func fastClient(url string) *backend.Client {
	client := backend.NewClient(url, "")
	client.Poll = retry.Policy{MaxAttempts: 5, Interval: 0}
	return client
}

func postDraft(t *testing.T, url string, draft backend.Draft) (int, responseEnvelope) {
	t.Helper()
	body, err := json.Marshal(draft)
	require.NoError(t, err)
	resp, err := http.Post(url+"/api/v1/writeback/commit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env responseEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestStubServerCommitsAfterPendingCycles(t *testing.T) {
	stub, srv := newTestStub(t)
	stub.HoldPolls = 2

	outcome, err := fastClient(srv.URL).Commit(context.Background(), backend.CommitRequest{
		TurnID:  "turn-1",
		Tool:    "user_patch",
		Payload: map[string]interface{}{"user": map[string]interface{}{"nickname": "Lee"}},
	})
	require.NoError(t, err)
	require.Equal(t, backend.StateCommitted, outcome.State)
	require.Equal(t, "user info updated", outcome.Summary)
	require.NotEmpty(t, outcome.DraftID)

	rows, err := stub.Store.List(context.Background(), "user", persistence.ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Lee", rows[0]["nickname"])
}

func TestStubServerRepliesResolvedDraftsVerbatim(t *testing.T) {
	stub, srv := newTestStub(t)
	stub.HoldPolls = 0

	draft := backend.Draft{
		DraftID: "draft-fixed",
		Payload: map[string]interface{}{
			"diet_records": []interface{}{
				map[string]interface{}{"record_date": "2026-08-25", "food_name": "oatmeal"},
			},
		},
		RequestMeta: backend.RequestMeta{Source: "test", IssuedAt: time.Now().UTC()},
	}

	status1, env1 := postDraft(t, srv.URL, draft)
	require.Equal(t, http.StatusOK, status1)
	require.True(t, env1.Success)

	// Re-sending the same draft must not append a second record.
	status2, env2 := postDraft(t, srv.URL, draft)
	require.Equal(t, status1, status2)
	require.Equal(t, env1, env2)

	rows, err := stub.Store.List(context.Background(), "diet_records", persistence.ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestStubServerRejectsInvalidPayload(t *testing.T) {
	_, srv := newTestStub(t)

	_, err := fastClient(srv.URL).Commit(context.Background(), backend.CommitRequest{
		TurnID:  "turn-1",
		Tool:    "user_patch",
		Payload: map[string]interface{}{"bogus_key": map[string]interface{}{"a": 1}},
	})
	var rejected *backend.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusUnprocessableEntity, rejected.Status)
	require.Contains(t, rejected.Detail, "bogus_key")
}

func TestStubServerRejectsDraftWithoutID(t *testing.T) {
	_, srv := newTestStub(t)

	status, env := postDraft(t, srv.URL, backend.Draft{
		Payload: map[string]interface{}{"user": map[string]interface{}{"nickname": "x"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "draft_id")
}

func TestStubServerServesBoundedReads(t *testing.T) {
	stub, srv := newTestStub(t)
	stub.HoldPolls = 0

	items := []interface{}{
		map[string]interface{}{"record_date": "2026-08-23", "food_name": "rice"},
		map[string]interface{}{"record_date": "2026-08-24", "food_name": "eggs"},
		map[string]interface{}{"record_date": "2026-08-25", "food_name": "salmon"},
	}
	_, err := stub.Store.Apply(context.Background(), map[string]interface{}{"diet_records": items})
	require.NoError(t, err)

	rows, err := fastClient(srv.URL).ListRecords(context.Background(), "diet_records", backend.ReadOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "salmon", rows[0]["food_name"])
	require.Equal(t, "eggs", rows[1]["food_name"])

	ranged, err := fastClient(srv.URL).ListRecords(context.Background(), "diet_records", backend.ReadOptions{
		From: "2026-08-24",
		To:   "2026-08-24",
	})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	require.Equal(t, "eggs", ranged[0]["food_name"])
}

func TestStubServerClampsRawLimitParam(t *testing.T) {
	stub, srv := newTestStub(t)

	items := make([]interface{}, 0, 60)
	for i := 0; i < 60; i++ {
		items = append(items, map[string]interface{}{"record_date": "2026-08-25", "food_name": "meal"})
	}
	_, err := stub.Store.Apply(context.Background(), map[string]interface{}{"diet_records": items})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/records/diet_records?limit=999")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Success bool                     `json:"success"`
		Data    []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.True(t, env.Success)
	require.Len(t, env.Data, backend.MaxReadLimit)
}

func TestStubServerUnknownResourceIs404(t *testing.T) {
	_, srv := newTestStub(t)

	resp, err := http.Get(srv.URL + "/api/v1/records/secrets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "unsupported")
}

func TestStubServerRequiresBearerToken(t *testing.T) {
	stub, srv := newTestStub(t)
	stub.Token = "sekrit"
	stub.HoldPolls = 0

	resp, err := http.Get(srv.URL + "/api/v1/records/user")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	authed := backend.NewClient(srv.URL, "sekrit")
	authed.Poll = retry.Policy{MaxAttempts: 5, Interval: 0}
	outcome, err := authed.Commit(context.Background(), backend.CommitRequest{
		TurnID:  "turn-1",
		Tool:    "user_patch",
		Payload: map[string]interface{}{"user": map[string]interface{}{"nickname": "x"}},
	})
	require.NoError(t, err)
	require.Equal(t, backend.StateCommitted, outcome.State)

	unauthed := fastClient(srv.URL)
	_, err = unauthed.Commit(context.Background(), backend.CommitRequest{
		TurnID:  "turn-2",
		Tool:    "user_patch",
		Payload: map[string]interface{}{"user": map[string]interface{}{"nickname": "y"}},
	})
	var rejected *backend.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusUnauthorized, rejected.Status)
}

func TestStubServerHealthEndpoint(t *testing.T) {
	_, srv := newTestStub(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "ok", status["status"])
}
