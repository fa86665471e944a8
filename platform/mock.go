package platform

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbxark/adagent/auth"
	"github.com/tbxark/adagent/config"
)

const (
	OpLookupMusic    = "lookup_music"
	OpUploadMusic    = "upload_music"
	OpCreateCampaign = "create_campaign"
)

// Call records one request received by Mock.
type Call struct {
	Op    string
	Token string
	Arg   string
}

// Mock is an in-process platform. The catalog comes from configuration,
// access tokens are checked with auth.Verify and failures can be queued per
// operation with Script.
type Mock struct {
	tokenSecret string
	now         func() time.Time

	mu      sync.Mutex
	catalog map[string]bool
	invalid map[string]bool
	script  map[string][]error
	calls   []Call
}

type MockOption func(*Mock)

func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) {
		m.now = now
	}
}

func NewMock(conf config.Platform, tokenSecret string, opts ...MockOption) *Mock {
	m := &Mock{
		tokenSecret: tokenSecret,
		now:         time.Now,
		catalog:     make(map[string]bool),
		invalid:     make(map[string]bool),
		script:      make(map[string][]error),
	}
	for _, id := range conf.KnownMusicIDs {
		m.catalog[id] = true
	}
	for _, id := range conf.InvalidMusicIDs {
		m.invalid[id] = true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Script queues results for the next calls of op. A nil entry lets the call
// run normally.
func (m *Mock) Script(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[op] = append(m.script[op], errs...)
}

func (m *Mock) Calls(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Client returns a view of the mock bound to accessToken. It satisfies
// Factory.
func (m *Mock) Client(accessToken string) Client {
	return &mockClient{mock: m, token: accessToken}
}

func (m *Mock) begin(ctx context.Context, op, token, arg string) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Op: op, Token: token, Arg: arg})
	var scripted error
	if queue := m.script[op]; len(queue) > 0 {
		scripted = queue[0]
		m.script[op] = queue[1:]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if scripted != nil {
		slog.Debug("Returning scripted platform failure", "op", op, "error", scripted)
		return scripted
	}
	if _, err := auth.Verify(token, m.tokenSecret, m.now()); err != nil {
		return &APIError{Code: CodeExpiredToken, Message: "Invalid OAuth token", LogID: logID()}
	}
	return nil
}

type mockClient struct {
	mock  *Mock
	token string
}

func (c *mockClient) LookupMusic(ctx context.Context, id string) (*MusicInfo, error) {
	id = strings.TrimSpace(id)
	if err := c.mock.begin(ctx, OpLookupMusic, c.token, id); err != nil {
		return nil, err
	}
	c.mock.mu.Lock()
	known, invalid := c.mock.catalog[id], c.mock.invalid[id]
	c.mock.mu.Unlock()
	switch {
	case invalid:
		return nil, &APIError{Code: CodeInvalidMusicID, Message: "Music ID not found or not accessible", LogID: logID()}
	case known:
		return &MusicInfo{
			ID:       id,
			Title:    "Mock Music Track",
			Artist:   "Mock Artist",
			Duration: 30 * time.Second,
			Usable:   true,
		}, nil
	default:
		return nil, &APIError{Code: CodeMissingPermission, Message: "Invalid music ID format", LogID: logID()}
	}
}

func (c *mockClient) UploadMusic(ctx context.Context, fileRef string) (string, error) {
	fileRef = strings.TrimSpace(fileRef)
	if err := c.mock.begin(ctx, OpUploadMusic, c.token, fileRef); err != nil {
		return "", err
	}
	if fileRef == "" {
		return "", &APIError{Code: CodeInvalidMusicID, Message: "Music file reference is empty", LogID: logID()}
	}
	id := "M" + digits(9)
	c.mock.mu.Lock()
	c.mock.catalog[id] = true
	c.mock.mu.Unlock()
	return id, nil
}

func (c *mockClient) CreateCampaign(ctx context.Context, payload Payload) (*Campaign, error) {
	if err := c.mock.begin(ctx, OpCreateCampaign, c.token, payload.CampaignName); err != nil {
		return nil, err
	}
	if id := payload.Creative.MusicID; id != "" {
		c.mock.mu.Lock()
		known := c.mock.catalog[id]
		c.mock.mu.Unlock()
		if !known {
			return nil, &APIError{Code: CodeInvalidMusicID, Message: "Invalid music ID", LogID: logID()}
		}
	}
	return &Campaign{
		CampaignID: "CMP" + digits(10),
		AdID:       "AD" + digits(10),
		Status:     "UNDER_REVIEW",
		ReviewETA:  "24 hours",
	}, nil
}

func logID() string {
	return "mock_log_" + uuid.NewString()
}

func digits(n int) string {
	u := uuid.New()
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		sb.WriteByte('0' + u[i%len(u)]%10)
	}
	return sb.String()
}
