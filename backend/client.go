// Package backend is the HTTP client for the user-record service: it
// submits writeback drafts through the commit protocol and serves the
// bounded record reads behind query_user_data.
//
// The commit protocol is asynchronous on the remote side. The client
// builds one draft, keeps re-submitting the same draft_id while the remote
// reports it pending, and stops on the first terminal answer. Draft
// identity is what makes the re-submits safe.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexcodex/fitcoach/retry"
	"github.com/lexcodex/fitcoach/telemetry"
)

// Commit states reported by the record service. Terminal states other than
// these pass through verbatim; only StatePendingRemote keeps the poll loop
// going.
const (
	StatePendingRemote = "pending_remote"
	StateCommitted     = "committed"
)

// DefaultPoll bounds the commit loop: twenty polls, one second apart.
var DefaultPoll = retry.Policy{MaxAttempts: 20, Interval: time.Second}

const draftSource = "fitcoach-agent"

// Client talks to one record service on behalf of one user.
type Client struct {
	BaseURL   string
	Token     string
	Poll      retry.Policy
	Debug     bool
	Telemetry telemetry.Telemetry
	client    *http.Client
}

// NewClient builds a client with the default poll policy.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Poll:    DefaultPoll,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Draft is the idempotent unit of one writeback. It is generated once per
// commit and re-sent unchanged on every poll.
type Draft struct {
	DraftID     string                 `json:"draft_id"`
	Payload     map[string]interface{} `json:"payload"`
	ContextText string                 `json:"context_text,omitempty"`
	RequestMeta RequestMeta            `json:"request_meta"`
}

// RequestMeta identifies where a draft came from.
type RequestMeta struct {
	Source   string    `json:"source"`
	Tool     string    `json:"tool,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// CommitRequest carries one writeback into Commit.
type CommitRequest struct {
	TurnID      string
	Tool        string
	Payload     map[string]interface{}
	ContextText string
}

// CommitOutcome is a terminal commit answer.
type CommitOutcome struct {
	DraftID string
	State   string
	Summary string
}

// RejectedError is a terminal refusal from the record service. The commit
// loop never retries these.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("writeback rejected (status %d)", e.Status)
	}
	return fmt.Sprintf("writeback rejected (status %d): %s", e.Status, e.Detail)
}

// TimeoutError means the draft was still pending when the poll budget ran
// out. The draft may yet land remotely; the turn just stops waiting.
type TimeoutError struct {
	DraftID string
	Polls   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("writeback commit timed out after %d polls (draft %s)", e.Polls, e.DraftID)
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type commitData struct {
	State   string `json:"state"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// reportedState folds the two keys the record service uses for its commit
// state; state wins when both are set.
func (d commitData) reportedState() string {
	if d.State != "" {
		return d.State
	}
	return d.Status
}

// Commit runs the full writeback protocol for one payload: build the draft
// once, submit, and keep polling with the same draft while the remote says
// pending. Rejections surface immediately; only pending answers consume
// the poll budget.
func (c *Client) Commit(ctx context.Context, req CommitRequest) (*CommitOutcome, error) {
	draft := Draft{
		DraftID:     uuid.NewString(),
		Payload:     req.Payload,
		ContextText: req.ContextText,
		RequestMeta: RequestMeta{
			Source:   draftSource,
			Tool:     req.Tool,
			IssuedAt: time.Now().UTC(),
		},
	}
	c.emit(telemetry.EventCommitSubmit, req.TurnID, map[string]interface{}{
		"draft_id": draft.DraftID,
		"tool":     req.Tool,
	})

	var outcome *CommitOutcome
	err := c.poll().Do(ctx, func(attempt int) (retry.Verdict, error) {
		status, body, err := c.submit(ctx, draft)
		if err != nil {
			return retry.Abort, fmt.Errorf("submit draft %s: %w", draft.DraftID, err)
		}
		var env envelope
		decodeErr := json.Unmarshal(body, &env)
		if status == http.StatusAccepted {
			c.logf("draft %s pending (attempt %d, accepted)", draft.DraftID, attempt)
			c.emit(telemetry.EventCommitPending, req.TurnID, map[string]interface{}{
				"draft_id": draft.DraftID,
				"attempt":  attempt,
			})
			return retry.Again, nil
		}
		if status >= 300 {
			detail := strings.TrimSpace(string(body))
			if decodeErr == nil && env.Error != "" {
				detail = env.Error
			}
			return retry.Abort, &RejectedError{Status: status, Detail: detail}
		}
		if decodeErr != nil {
			return retry.Abort, &RejectedError{Status: status, Detail: "malformed commit response"}
		}
		var data commitData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return retry.Abort, &RejectedError{Status: status, Detail: "malformed commit response"}
			}
		}
		if env.Success && data.reportedState() == StatePendingRemote {
			c.logf("draft %s pending (attempt %d, state)", draft.DraftID, attempt)
			c.emit(telemetry.EventCommitPending, req.TurnID, map[string]interface{}{
				"draft_id": draft.DraftID,
				"attempt":  attempt,
			})
			return retry.Again, nil
		}
		if !env.Success {
			return retry.Abort, &RejectedError{Status: status, Detail: env.Error}
		}
		state := data.reportedState()
		if state == "" {
			state = StateCommitted
		}
		outcome = &CommitOutcome{DraftID: draft.DraftID, State: state, Summary: data.Summary}
		return retry.Done, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		err = &TimeoutError{DraftID: draft.DraftID, Polls: c.poll().MaxAttempts}
	}
	if err != nil {
		c.emit(telemetry.EventCommitResult, req.TurnID, map[string]interface{}{
			"draft_id": draft.DraftID,
			"error":    err.Error(),
		})
		return nil, err
	}
	c.emit(telemetry.EventCommitResult, req.TurnID, map[string]interface{}{
		"draft_id": draft.DraftID,
		"state":    outcome.State,
	})
	return outcome, nil
}

func (c *Client) submit(ctx context.Context, draft Draft) (int, []byte, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/writeback/commit", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	c.logf("commit %s -> %d %s", draft.DraftID, resp.StatusCode, truncate(string(respBody), 512))
	return resp.StatusCode, respBody, nil
}

func (c *Client) poll() retry.Policy {
	if c.Poll.MaxAttempts > 0 {
		return c.Poll
	}
	return DefaultPoll
}

func (c *Client) getHTTPClient() *http.Client {
	if c.client != nil {
		return c.client
	}
	c.client = &http.Client{Timeout: 30 * time.Second}
	return c.client
}

func (c *Client) emit(eventType telemetry.EventType, turnID string, payload map[string]interface{}) {
	if c.Telemetry == nil {
		return
	}
	c.Telemetry.Emit(telemetry.New(eventType, turnID, payload))
}

func (c *Client) logf(format string, args ...interface{}) {
	if !c.Debug {
		return
	}
	log.Printf("[backend] "+format, args...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
