package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/config"
	"azchat/internal/core"
	"azchat/internal/providers"
	"azchat/internal/settings"
)

type stubSettings struct {
	s   *settings.Settings
	err error
}

func (s stubSettings) Resolve() (*settings.Settings, error) { return s.s, s.err }

type stubCredentials struct {
	key   string
	err   error
	calls atomic.Int32
}

func (c *stubCredentials) Resolve(context.Context) (string, string, error) {
	c.calls.Add(1)
	return c.key, "env", c.err
}

// recordingBackend captures requests and replies with text or err.
type recordingBackend struct {
	mu   sync.Mutex
	reqs []*core.ChatRequest
	text string
	err  error
}

func (b *recordingBackend) Complete(_ context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	if b.err != nil {
		return nil, b.err
	}
	return &core.ChatResponse{Text: b.text}, nil
}

type stubFactory struct {
	backend *recordingBackend
	err     error
	creates atomic.Int32
	gotKey  string
	gotType string
}

func (f *stubFactory) Create(backendType string, _ *settings.Settings, apiKey string, _ providers.ProviderOptions) (core.ChatBackend, error) {
	f.creates.Add(1)
	f.gotKey = apiKey
	f.gotType = backendType
	if f.err != nil {
		return nil, f.err
	}
	return f.backend, nil
}

var validSettings = stubSettings{s: &settings.Settings{Endpoint: "https://x.services.ai.azure.com", Model: "gpt-4o-mini", APIVersion: settings.DefaultAPIVersion}}

func TestSend_Defaults(t *testing.T) {
	backend := &recordingBackend{text: "Hi there!"}
	factory := &stubFactory{backend: backend}
	svc := New(validSettings, &stubCredentials{key: "k"}, factory, Options{})

	text, err := svc.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)

	require.Len(t, backend.reqs, 1)
	req := backend.reqs[0]
	assert.Equal(t, config.DefaultSystemPrompt, req.SystemPrompt)
	assert.Equal(t, "Hello", req.UserPrompt)
	assert.Equal(t, config.DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, config.DefaultBackend, factory.gotType)
	assert.Equal(t, "k", factory.gotKey)
}

func TestSend_Options(t *testing.T) {
	backend := &recordingBackend{text: "ok"}
	svc := New(validSettings, &stubCredentials{key: "k"}, &stubFactory{backend: backend}, Options{
		SystemPrompt: "configured",
		MaxTokens:    50,
	})

	_, err := svc.Send(context.Background(), "", WithSystemPrompt("be terse"), WithMaxTokens(8))
	require.NoError(t, err)

	req := backend.reqs[0]
	assert.Equal(t, "be terse", req.SystemPrompt)
	assert.Equal(t, 8, req.MaxTokens)
	assert.Equal(t, "", req.UserPrompt)
}

func TestSend_EmptyReply(t *testing.T) {
	svc := New(validSettings, &stubCredentials{key: "k"}, &stubFactory{backend: &recordingBackend{}}, Options{})

	text, err := svc.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestSend_ConfigurationErrorBeforeCredentials(t *testing.T) {
	cfgErr := core.NewConfigurationError("endpoint", "Missing configuration: set AZURE_AI_INFERENCE_ENDPOINT (recommended) or AZURE_OPENAI_ENDPOINT.")
	creds := &stubCredentials{key: "k"}
	factory := &stubFactory{backend: &recordingBackend{}}
	svc := New(stubSettings{err: cfgErr}, creds, factory, Options{})

	_, err := svc.Send(context.Background(), "Hello")
	assert.Same(t, cfgErr, err)
	assert.Zero(t, creds.calls.Load())
	assert.Zero(t, factory.creates.Load())
}

func TestSend_BackendErrorReturnedUnmodified(t *testing.T) {
	upstream := core.NewAuthenticationError("inference", "Access denied")
	svc := New(validSettings, &stubCredentials{key: "k"}, &stubFactory{backend: &recordingBackend{err: upstream}}, Options{})

	_, err := svc.Send(context.Background(), "Hello")
	assert.Same(t, upstream, err)
}

func TestSend_FailedBuildIsRetried(t *testing.T) {
	creds := &stubCredentials{err: core.NewMissingCredentialError("Missing API key.")}
	factory := &stubFactory{backend: &recordingBackend{text: "ok"}}
	svc := New(validSettings, creds, factory, Options{})

	_, err := svc.Send(context.Background(), "Hello")
	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, core.KindMissingCredential, cerr.Kind)

	creds.err = nil
	creds.key = "k"
	text, err := svc.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), creds.calls.Load())
}

func TestBackend_ConstructedOnceUnderConcurrency(t *testing.T) {
	factory := &stubFactory{backend: &recordingBackend{text: "ok"}}
	svc := New(validSettings, &stubCredentials{key: "k"}, factory, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(context.Background(), "Hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), factory.creates.Load())
	assert.Len(t, factory.backend.reqs, 32)
}

// ctxCredentials records the context it was resolved with.
type ctxCredentials struct {
	err         error
	hasDeadline bool
}

func (c *ctxCredentials) Resolve(ctx context.Context) (string, string, error) {
	c.err = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
	return "k", "vault", nil
}

func TestBackend_BuildOutlivesCanceledRequest(t *testing.T) {
	creds := &ctxCredentials{}
	factory := &stubFactory{backend: &recordingBackend{text: "ok"}}
	svc := New(validSettings, creds, factory, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend, err := svc.Backend(ctx)
	require.NoError(t, err)
	assert.NotNil(t, backend)
	assert.NoError(t, creds.err)
	assert.True(t, creds.hasDeadline)

	text, err := svc.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(1), factory.creates.Load())
}
