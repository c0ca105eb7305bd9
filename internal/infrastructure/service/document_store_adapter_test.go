package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/external/github"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/file"
	"github.com/exportstafft-ui/intern-attendance/pkg/circuitbreaker"
)

// fakeContents is an in-memory contents API with sha checking.
type fakeContents struct {
	mu       sync.Mutex
	files    map[string]string // path -> content
	shas     map[string]string
	version  int
	getErr   error
	putErrs  []error // consumed one per PutContents call
	puts     []github.PutContentsRequest
	getCalls int

	// large makes GetContents answer like it does for files over 1 MB.
	large bool
}

func newFakeContents() *fakeContents {
	return &fakeContents{files: map[string]string{}, shas: map[string]string{}}
}

func (f *fakeContents) seed(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.files[path] = content
	f.shas[path] = fmt.Sprintf("sha-%d", f.version)
}

func (f *fakeContents) GetContents(ctx context.Context, path string) (*github.ContentsDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	content, ok := f.files[path]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, Message: "Not Found"}
	}
	if f.large {
		return &github.ContentsDTO{Type: "file", Encoding: "none", SHA: f.shas[path]}, nil
	}
	return &github.ContentsDTO{
		Type:     "file",
		Encoding: "base64",
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:      f.shas[path],
	}, nil
}

func (f *fakeContents) PutContents(ctx context.Context, path string, req github.PutContentsRequest) (*github.PutContentsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, req)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if current, ok := f.shas[path]; ok && req.SHA != current {
		return nil, &github.APIError{StatusCode: 409, Message: "does not match"}
	}
	raw, _ := base64.StdEncoding.DecodeString(req.Content)
	f.version++
	f.files[path] = string(raw)
	f.shas[path] = fmt.Sprintf("sha-%d", f.version)
	return &github.PutContentsResponse{Content: &github.ContentsDTO{SHA: f.shas[path]}}, nil
}

func (f *fakeContents) Ping(ctx context.Context) error { return nil }

func newAdapter(t *testing.T, client ContentsClient) (*DocumentStoreAdapter, *file.FallbackStore) {
	t.Helper()
	fb, err := file.NewFallbackStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultDocumentStoreConfig()
	cfg.BreakerFailureThreshold = 2
	cfg.BreakerOpenTimeout = time.Hour
	return NewDocumentStoreAdapter(client, fb, cfg), fb
}

const path = attendance.DocumentPath

func TestGet_FoundNotFoundFailed(t *testing.T) {
	fake := newFakeContents()
	a, _ := newAdapter(t, fake)
	ctx := context.Background()

	res := a.Get(ctx, path)
	assert.Equal(t, attendance.FetchNotFound, res.Status)

	fake.seed(path, `{"records":[],"interns":[]}`)
	res = a.Get(ctx, path)
	require.Equal(t, attendance.FetchFound, res.Status)
	assert.Equal(t, "sha-1", res.Revision)
	assert.JSONEq(t, `{"records":[],"interns":[]}`, string(res.Content))

	fake.getErr = shared.WrapError("github", "GET", shared.ErrTransport, "http request failed", errors.New("dial tcp: refused"))
	res = a.Get(ctx, path)
	assert.Equal(t, attendance.FetchFailed, res.Status)
	assert.ErrorIs(t, res.Err, shared.ErrTransport)
}

func TestPut_IncludesCurrentSHA(t *testing.T) {
	fake := newFakeContents()
	fake.seed(path, `{"records":[],"interns":[]}`)
	a, _ := newAdapter(t, fake)

	out, err := a.Put(context.Background(), path, []byte(`{"records":[],"interns":[{"id":1,"name":"A"}]}`), "Added intern: A")
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, "sha-2", out.Revision)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "sha-1", fake.puts[0].SHA)
	assert.Equal(t, "Added intern: A", fake.puts[0].Message)
}

func TestPut_CreatesWithoutSHA(t *testing.T) {
	fake := newFakeContents()
	a, _ := newAdapter(t, fake)

	out, err := a.Put(context.Background(), path, []byte(`{}`), "m")
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	require.Len(t, fake.puts, 1)
	assert.Empty(t, fake.puts[0].SHA)
}

func TestPut_LargeFileStillWritesRemote(t *testing.T) {
	fake := newFakeContents()
	fake.seed(path, `{"records":[],"interns":[]}`)
	fake.large = true
	a, fb := newAdapter(t, fake)
	ctx := context.Background()

	res := a.Get(ctx, path)
	assert.Equal(t, attendance.FetchFailed, res.Status)

	out, err := a.Put(ctx, path, []byte(`{"records":[],"interns":[]}`), "m")
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, "sha-2", out.Revision)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "sha-1", fake.puts[0].SHA)

	_, err = fb.Load(ctx, path)
	assert.ErrorIs(t, err, attendance.ErrFallbackMiss)
}

func TestPut_StaleRevisionIsRetriedWithFreshSHA(t *testing.T) {
	fake := newFakeContents()
	fake.seed(path, `{}`)
	fake.putErrs = []error{&github.APIError{StatusCode: 409, Message: "does not match"}}
	a, fb := newAdapter(t, fake)

	// Someone else commits between our first read and write.
	fake.seed(path, `{"records":[],"interns":[]}`)

	out, err := a.Put(context.Background(), path, []byte(`{"records":[],"interns":[]}`), "m")
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	require.Len(t, fake.puts, 2)
	assert.Equal(t, "sha-2", fake.puts[1].SHA)

	_, err = fb.Load(context.Background(), path)
	assert.ErrorIs(t, err, attendance.ErrFallbackMiss)
}

func TestPut_ExhaustedStaleRetriesFallBack(t *testing.T) {
	fake := newFakeContents()
	conflict := &github.APIError{StatusCode: 409, Message: "does not match"}
	fake.putErrs = []error{conflict, conflict, conflict}
	a, fb := newAdapter(t, fake)

	doc := []byte(`{"records":[],"interns":[]}`)
	out, err := a.Put(context.Background(), path, doc, "m")
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Len(t, fake.puts, 3)

	saved, err := fb.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, doc, saved)
}

func TestPut_RemoteDownFallsBack(t *testing.T) {
	fake := newFakeContents()
	fake.getErr = shared.WrapError("github", "GET", shared.ErrTransport, "http request failed", errors.New("no route to host"))
	a, fb := newAdapter(t, fake)

	doc := []byte(`{"records":[{"id":1}],"interns":[]}`)
	out, err := a.Put(context.Background(), path, doc, "m")
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Empty(t, out.Revision)
	assert.Empty(t, fake.puts)

	saved, err := fb.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, doc, saved)
}

func TestPut_BreakerOpensAndSkipsRemote(t *testing.T) {
	fake := newFakeContents()
	fake.getErr = shared.WrapError("github", "GET", shared.ErrTransport, "http request failed", errors.New("timeout"))
	a, _ := newAdapter(t, fake)
	ctx := context.Background()

	_, _ = a.Put(ctx, path, []byte(`{}`), "m")
	_, _ = a.Put(ctx, path, []byte(`{}`), "m")
	assert.Equal(t, circuitbreaker.StateOpen, a.BreakerState())

	calls := fake.getCalls
	out, err := a.Put(ctx, path, []byte(`{}`), "m")
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, calls, fake.getCalls)

	res := a.Get(ctx, path)
	assert.Equal(t, attendance.FetchFailed, res.Status)
	assert.ErrorIs(t, res.Err, circuitbreaker.ErrCircuitOpen)
}

func TestPut_NotFoundDoesNotTripBreaker(t *testing.T) {
	fake := newFakeContents()
	a, _ := newAdapter(t, fake)

	for i := 0; i < 5; i++ {
		assert.Equal(t, attendance.FetchNotFound, a.Get(context.Background(), path).Status)
	}
	assert.Equal(t, circuitbreaker.StateClosed, a.BreakerState())
}

type brokenFallback struct{}

func (brokenFallback) Save(ctx context.Context, key string, data []byte) error {
	return errors.New("disk full")
}
func (brokenFallback) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk full")
}
func (brokenFallback) Ping(ctx context.Context) error { return nil }

func TestPut_BothStoresFail(t *testing.T) {
	fake := newFakeContents()
	fake.getErr = shared.WrapError("github", "GET", shared.ErrTransport, "http request failed", errors.New("down"))
	a := NewDocumentStoreAdapter(fake, brokenFallback{}, DefaultDocumentStoreConfig())

	_, err := a.Put(context.Background(), path, []byte(`{}`), "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.ErrorIs(t, err, shared.ErrTransport)
}

func TestOfflineClient_EverythingGoesToFallback(t *testing.T) {
	a, fb := newAdapter(t, OfflineContentsClient{})
	ctx := context.Background()

	res := a.Get(ctx, path)
	assert.Equal(t, attendance.FetchNotFound, res.Status)

	doc := []byte(`{"records":[],"interns":[{"id":1,"name":"A"}]}`)
	out, err := a.Put(ctx, path, doc, "Added intern: A")
	require.NoError(t, err)
	assert.True(t, out.Fallback)

	saved, err := fb.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, doc, saved)

	assert.ErrorIs(t, a.Ping(ctx), shared.ErrServiceUnavailable)

	for i := 0; i < 5; i++ {
		_, err := a.Put(ctx, path, doc, "m")
		require.NoError(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, a.BreakerState())
	assert.Equal(t, attendance.FetchNotFound, a.Get(ctx, path).Status)
}
