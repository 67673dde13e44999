package aaa_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	aaa "github.com/goliatone/go-aaa"
	"github.com/goliatone/go-aaa/store/memory"
	"github.com/stretchr/testify/require"
)

// testIterations keeps PBKDF2 cheap in tests; the work factor only affects
// speed, not the encoding contract.
const testIterations = 64

type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(format string, args ...any) { l.t.Logf("[DBG] "+format, args...) }
func (l testLogger) Info(format string, args ...any)  { l.t.Logf("[INF] "+format, args...) }
func (l testLogger) Warn(format string, args ...any)  { l.t.Logf("[WRN] "+format, args...) }
func (l testLogger) Error(format string, args ...any) { l.t.Logf("[ERR] "+format, args...) }

// fakeNotifier records dispatches and optionally fails them synchronously.
type fakeNotifier struct {
	mu         sync.Mutex
	dispatches []dispatch
	err        error
}

type dispatch struct {
	Recipient string
	Subject   string
	Body      string
}

func (n *fakeNotifier) Dispatch(ctx context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.dispatches = append(n.dispatches, dispatch{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (n *fakeNotifier) Drain(timeout time.Duration) error { return nil }

func (n *fakeNotifier) sent() []dispatch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatch(nil), n.dispatches...)
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []aaa.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event aaa.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []aaa.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]aaa.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	engine   *aaa.Engine
	store    *aaa.Store
	sessions *aaa.MemorySessions
	hasher   *aaa.PasswordHasher
	notifier *fakeNotifier
	sink     *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memory.NewStore(),
		sessions: aaa.NewMemorySessions(),
		hasher:   aaa.NewPasswordHasher().WithIterations(testIterations),
		notifier: &fakeNotifier{},
		sink:     &recordingSink{},
	}
	env.engine = aaa.New(env.store, env.sessions).
		WithHasher(env.hasher).
		WithNotifier(env.notifier).
		WithActivitySink(env.sink).
		WithLogger(testLogger{t})
	return env
}

func (env *testEnv) seedRole(t *testing.T, name string, level int) {
	t.Helper()
	require.NoError(t, env.store.Roles.Set(context.Background(), name, aaa.Role{Level: level}))
}

func (env *testEnv) seedUser(t *testing.T, username, password, role, company, email string) {
	t.Helper()

	hash, err := env.hasher.Hash(username, password)
	require.NoError(t, err)

	user := aaa.User{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		EmailAddress: email,
		Company:      company,
		Validated:    true,
		CreatedAt:    time.Now().Unix(),
	}
	require.NoError(t, env.store.Users.Set(context.Background(), username, user))
}

func (env *testEnv) loginAs(t *testing.T, username string) {
	t.Helper()
	require.NoError(t, env.sessions.Bind(context.Background(), username))
}

var errBoom = errors.New("boom")
