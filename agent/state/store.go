package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

var ErrInvalidKey = errors.New("dispatch key is empty")

const (
	defaultKeyPrefix     = "warmup:dispatch:"
	defaultLedgerTTL     = 7 * 24 * time.Hour
	maxResponseSizeBytes = 2 << 20
)

var (
	_ contractx.DispatchLedger = (*MemoryLedger)(nil)
	_ contractx.DispatchLedger = (*UpstashRedisLedger)(nil)
)

// MemoryLedger is a process-local dispatch latch.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &MemoryLedger{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (l *MemoryLedger) Acquire(_ context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ErrInvalidKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.seen {
		if now.Sub(at) > l.ttl {
			delete(l.seen, k)
		}
	}
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = now
	return true, nil
}

// LedgerOption customizes UpstashRedisLedger.
type LedgerOption func(*UpstashRedisLedger)

func WithKeyPrefix(prefix string) LedgerOption {
	return func(s *UpstashRedisLedger) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) LedgerOption {
	return func(s *UpstashRedisLedger) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) LedgerOption {
	return func(s *UpstashRedisLedger) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisLedger shares the dispatch latch across instances with SET NX over the
// Upstash Redis REST API.
type UpstashRedisLedger struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func (c UpstashRedisConfig) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Token) != ""
}

func NewUpstashRedisLedger(cfg UpstashRedisConfig, opts ...LedgerOption) (*UpstashRedisLedger, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: upstash redis url is required", contractx.ErrNotConfigured)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: upstash redis token is required", contractx.ErrNotConfigured)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ledger := &UpstashRedisLedger{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultKeyPrefix,
		ttl:        defaultLedgerTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ledger)
		}
	}

	if ledger.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return ledger, nil
}

// Acquire returns true only for the first caller of key within the TTL.
func (s *UpstashRedisLedger) Acquire(ctx context.Context, key string) (bool, error) {
	redisKey, err := s.redisKey(key)
	if err != nil {
		return false, err
	}

	cmd := []any{"SET", redisKey, time.Now().UTC().Format(time.RFC3339), "NX"}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	resp, err := s.exec(ctx, cmd)
	if err != nil {
		return false, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return false, nil
	}
	var status string
	if err := json.Unmarshal(result, &status); err != nil {
		return false, fmt.Errorf("decode redis SET result: %w", err)
	}
	return status == "OK", nil
}

func (s *UpstashRedisLedger) redisKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	return strings.TrimSpace(s.keyPrefix) + strings.TrimSpace(key), nil
}

func (s *UpstashRedisLedger) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
