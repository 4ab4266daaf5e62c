package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
)

// DefaultTimeout applies when Config.Timeout is unset.
const DefaultTimeout = 120 * time.Second

// endpoint is the HTTP plumbing shared by the providers.
type endpoint struct {
	provider string
	client   *http.Client
	// limiter is nil when throttling is disabled.
	limiter *rate.Limiter
}

func newEndpoint(provider string, cfg Config) endpoint {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := endpoint{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e
}

// postJSON sends body to url and decodes a 200 reply into out.
func (e endpoint) postJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return errs.Upstream(ctx, fmt.Errorf("%s rate limiter: %w", e.provider, err))
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", e.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", e.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return errs.Upstream(ctx, fmt.Errorf("%s request failed: %w", e.provider, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: %s returned status %d: %s", errs.ErrUpstream, e.provider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Upstream(ctx, fmt.Errorf("failed to decode %s response: %w", e.provider, err))
	}
	return nil
}

// callTool runs the named tool. Tool failures are reported back to the model
// as text so it can recover; only cancellation aborts the exchange.
func callTool(ctx context.Context, tools []Tool, name string, args json.RawMessage) (string, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return "", err
	}
	for _, t := range tools {
		if t.Name != name {
			continue
		}
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage("{}")
		}
		out, err := t.Call(ctx, args)
		if err != nil {
			if ctxErr := errs.CheckContext(ctx); ctxErr != nil {
				return "", ctxErr
			}
			logger.Warn("tool %s failed: %v", name, err)
			return "error: " + err.Error(), nil
		}
		logger.Debug("tool %s returned %d bytes", name, len(out))
		return out, nil
	}
	return fmt.Sprintf("error: unknown tool %q", name), nil
}

func maxSteps(n int) int {
	if n <= 0 {
		return DefaultMaxSteps
	}
	return n
}
