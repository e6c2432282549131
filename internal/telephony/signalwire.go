package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"callmonitor/internal/config"
)

// ErrPermanent marks carrier rejections that retrying cannot fix (4xx other
// than 429). Callers fail the attempt instead of retrying.
var ErrPermanent = errors.New("telephony: permanent carrier error")

// SignalWireProvider talks to the SignalWire compatibility REST API.
//
// Retry policy:
// - Timeouts and 5xx responses retry with exponential backoff.
// - 429 retries after the Retry-After delay when the header is present.
// - Other 4xx responses are permanent and surface ErrPermanent.
type SignalWireProvider struct {
	cfg    config.SignalWireConfig
	client *http.Client

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

func NewSignalWireProvider(cfg config.SignalWireConfig) *SignalWireProvider {
	return &SignalWireProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		sleep:  sleepCtx,
	}
}

func (p *SignalWireProvider) Name() string { return "signalwire" }

func (p *SignalWireProvider) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("MachineDetection", "DetectMessageEnd")
	form.Set("AsyncAmd", "true")
	form.Set("AsyncAmdStatusCallback", p.webhookURL("amd", req.CallID))
	form.Set("StatusCallback", p.webhookURL("status", req.CallID))
	form.Set("Url", p.webhookURL("answer", req.CallID))

	var resp struct {
		Sid        string `json:"sid"`
		SessionSid string `json:"session_sid"`
	}
	if err := p.do(ctx, http.MethodPost, p.callsURL(""), form, &resp); err != nil {
		return DialResult{}, err
	}
	if resp.Sid == "" {
		return DialResult{}, fmt.Errorf("telephony: signalwire dial returned no call sid")
	}
	return DialResult{ProviderCallID: resp.Sid, ProviderSessionID: resp.SessionSid}, nil
}

func (p *SignalWireProvider) Speak(ctx context.Context, req SpeakRequest) error {
	form := url.Values{}
	form.Set("Say", req.Script)
	if req.Loop {
		form.Set("Loop", "0")
	}
	form.Set("PlaybackStatusCallback", p.webhookURL("playback", ""))
	return p.do(ctx, http.MethodPost, p.callsURL(req.ProviderCallID+"/Say"), form, nil)
}

func (p *SignalWireProvider) PlaybackStart(ctx context.Context, providerCallID, audioURL string) error {
	form := url.Values{}
	form.Set("Url", audioURL)
	form.Set("PlaybackStatusCallback", p.webhookURL("playback", ""))
	return p.do(ctx, http.MethodPost, p.callsURL(providerCallID+"/Play"), form, nil)
}

func (p *SignalWireProvider) Hangup(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "completed")
	err := p.do(ctx, http.MethodPost, p.callsURL(providerCallID), form, nil)
	if errors.Is(err, ErrPermanent) {
		// The call may already be gone at the carrier; that is success for
		// a hangup.
		return nil
	}
	return err
}

func (p *SignalWireProvider) callsURL(suffix string) string {
	base := fmt.Sprintf("%s/api/laml/2010-04-01/Accounts/%s/Calls",
		strings.TrimRight(p.cfg.SpaceURL, "/"), p.cfg.ProjectID)
	if suffix == "" {
		return base + ".json"
	}
	return base + "/" + suffix + ".json"
}

func (p *SignalWireProvider) webhookURL(kind, callID string) string {
	u := fmt.Sprintf("%s/webhooks/signalwire/%s", strings.TrimRight(p.cfg.PublicBaseURL, "/"), kind)
	if callID != "" {
		u += "?call_id=" + url.QueryEscape(callID)
	}
	return u
}

func (p *SignalWireProvider) do(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	maxAttempts := p.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.backoff(attempt, lastErr)); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(p.cfg.ProjectID, p.cfg.APIToken)

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			return json.Unmarshal(body, out)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &retryAfterError{delay: parseRetryAfter(resp.Header.Get("Retry-After"))}
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("telephony: signalwire %d: %s", resp.StatusCode, truncate(body, 200))
			continue
		default:
			return fmt.Errorf("%w: %d: %s", ErrPermanent, resp.StatusCode, truncate(body, 200))
		}
	}
	return fmt.Errorf("telephony: signalwire request failed after %d attempts: %w", maxAttempts, lastErr)
}

// backoff doubles per attempt starting at one second, except when the
// carrier named its own delay via Retry-After.
func (p *SignalWireProvider) backoff(attempt int, lastErr error) time.Duration {
	var ra *retryAfterError
	if errors.As(lastErr, &ra) && ra.delay > 0 {
		return ra.delay
	}
	return time.Duration(1<<(attempt-2)) * time.Second
}

type retryAfterError struct{ delay time.Duration }

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("telephony: rate limited, retry after %s", e.delay)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
