package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dcm-services/job-processor/internal/pkg/httpx"
)

// Config is the per-adapter set of downstream parameters, grounded on the
// donor's retry/backoff helpers and the spec's closed configuration set
// (REQUEST_POLL_INTERVAL, PROCESS_TIMEOUT, REQUEST_TIMEOUT,
// PROCESS_REQUEST_MAX_RETRIES, PROCESS_REQUEST_RETRY_INTERVAL).
//
// Config is a plain value type. The Stage Runner's abort closure does not
// copy it: the closure holds the stage adapter itself and issues the
// downstream DELETE through that adapter's Transport and http.Client.
type Config struct {
	Host             string
	SubmitPath       string
	ReportPath       string
	PollInterval     time.Duration
	ProcessTimeout   time.Duration
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryInterval    time.Duration
}

// Transport is the shared HTTP plumbing every stage adapter embeds: submit,
// poll-until-terminal, and abort, with retry/backoff on the submit call.
type Transport struct {
	Config Config
	Client *http.Client
}

func NewTransport(cfg Config) *Transport {
	return &Transport{
		Config: cfg,
		Client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type submitResponse struct {
	Value     string `json:"value"`
	Expires   bool   `json:"expires"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Submit posts body to Config.SubmitPath, retrying on retryable HTTP
// statuses/transport errors up to Config.MaxRetries times.
func (t *Transport) Submit(ctx context.Context, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode submit body: %w", err)
	}

	var lastErr error
	attempts := t.Config.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &UnreachableError{Err: ctx.Err()}
			case <-time.After(httpx.JitterSleep(t.Config.RetryInterval)):
			}
		}
		token, resp, err := t.doSubmit(ctx, payload)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if resp != nil && !httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			return "", err
		}
		if resp == nil && !httpx.IsRetryableError(err) {
			return "", &UnreachableError{Err: err}
		}
	}
	return "", lastErr
}

func (t *Transport) doSubmit(ctx context.Context, payload []byte) (string, *http.Response, error) {
	url := strings.TrimRight(t.Config.Host, "/") + t.Config.SubmitPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", nil, &UnreachableError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", nil, &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", resp, &RejectedError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp, fmt.Errorf("decode submit response: %w", err)
	}
	return out.Value, resp, nil
}

// Poll repeatedly GETs Config.ReportPath?token=... every PollInterval until
// the downstream report reaches a terminal state, ProcessTimeout elapses,
// or ctx is canceled (which surfaces as AbortedError so callers can tell
// "orchestrator gave up" apart from "downstream exceeded its own budget").
func (t *Transport) Poll(ctx context.Context, token string, hook UpdateHook) (*Report, error) {
	deadline := time.Now().Add(t.Config.ProcessTimeout)
	interval := t.Config.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	for {
		report, resp, err := t.fetchReport(ctx, token)
		if err == nil {
			if hook != nil {
				hook(report)
			}
			if report.IsTerminal() {
				return report, nil
			}
		} else if resp != nil && resp.StatusCode != http.StatusServiceUnavailable {
			return nil, &UnreachableError{Err: err}
		}

		if t.Config.ProcessTimeout > 0 && time.Now().After(deadline) {
			return nil, &TimeoutError{Elapsed: t.Config.ProcessTimeout}
		}
		select {
		case <-ctx.Done():
			return nil, &AbortedError{Reason: ctx.Err().Error()}
		case <-time.After(interval):
		}
	}
}

func (t *Transport) fetchReport(ctx context.Context, token string) (*Report, *http.Response, error) {
	url := strings.TrimRight(t.Config.Host, "/") + t.Config.ReportPath + "?token=" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, resp, fmt.Errorf("report not ready: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, resp, &RejectedError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out Report
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp, fmt.Errorf("decode report: %w", err)
	}
	return &out, resp, nil
}

// Abort issues the downstream DELETE for token, a single best-effort HTTP
// round-trip. Errors are returned but never block the caller from
// continuing — per the spec, abort is fire-and-then-observe.
func (t *Transport) Abort(ctx context.Context, token, reason, origin string) error {
	body, _ := json.Marshal(map[string]string{"origin": origin, "reason": reason})
	url := strings.TrimRight(t.Config.Host, "/") + t.Config.SubmitPath + "?token=" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return &UnreachableError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &RejectedError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}
