package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/external/github"
	"github.com/exportstafft-ui/intern-attendance/pkg/circuitbreaker"
	"github.com/exportstafft-ui/intern-attendance/pkg/retry"
)

// ContentsClient is the subset of github.Client the adapter needs.
type ContentsClient interface {
	GetContents(ctx context.Context, path string) (*github.ContentsDTO, error)
	PutContents(ctx context.Context, path string, req github.PutContentsRequest) (*github.PutContentsResponse, error)
	Ping(ctx context.Context) error
}

// DocumentStoreConfig tunes the adapter.
type DocumentStoreConfig struct {
	// StaleWriteAttempts bounds refetch-and-write cycles after a sha conflict.
	StaleWriteAttempts int

	// BreakerFailureThreshold opens the circuit after this many consecutive failures.
	BreakerFailureThreshold int

	// BreakerOpenTimeout is how long writes skip the remote store once open.
	BreakerOpenTimeout time.Duration

	Logger *slog.Logger
}

// DefaultDocumentStoreConfig returns sensible defaults.
func DefaultDocumentStoreConfig() DocumentStoreConfig {
	return DocumentStoreConfig{
		StaleWriteAttempts:      3,
		BreakerFailureThreshold: 3,
		BreakerOpenTimeout:      60 * time.Second,
	}
}

// DocumentStoreAdapter adapts the contents API client to attendance.DocumentStore.
// Remote writes that fail for any reason other than a lost revision race end
// up in the fallback store.
type DocumentStoreAdapter struct {
	client   ContentsClient
	fallback attendance.FallbackStore
	breaker  *circuitbreaker.CircuitBreaker
	stale    *retry.Retrier
	logger   *slog.Logger
}

var _ attendance.DocumentStore = (*DocumentStoreAdapter)(nil)

// NewDocumentStoreAdapter wires the client, the fallback store and a circuit breaker.
func NewDocumentStoreAdapter(client ContentsClient, fallback attendance.FallbackStore, cfg DocumentStoreConfig) *DocumentStoreAdapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StaleWriteAttempts <= 0 {
		cfg.StaleWriteAttempts = 1
	}
	logger := cfg.Logger.With("component", "document_store")

	breaker := circuitbreaker.GitHubAPIBreaker(
		cfg.BreakerFailureThreshold,
		cfg.BreakerOpenTimeout,
		func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		circuitbreaker.WithIsFailure(countsAsOutage),
	)

	return &DocumentStoreAdapter{
		client:   client,
		fallback: fallback,
		breaker:  breaker,
		stale: retry.StaleWriteRetrier(cfg.StaleWriteAttempts,
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Info("stale revision, refetching", "attempt", attempt, "delay", delay)
			}),
		),
		logger: logger,
	}
}

// countsAsOutage keeps answers that prove the API is up out of the breaker's
// failure count.
func countsAsOutage(err error) bool {
	switch {
	case err == nil:
		return false
	case shared.IsNotFound(err), shared.IsStaleWrite(err):
		return false
	case errors.Is(err, errOffline):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Get fetches the document at path.
func (a *DocumentStoreAdapter) Get(ctx context.Context, path string) attendance.FetchResult {
	var dto *github.ContentsDTO
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		dto, err = a.client.GetContents(ctx, path)
		return err
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return attendance.NotFound()
		}
		return attendance.Failed(err)
	}

	raw, err := dto.Decode()
	if err != nil {
		return attendance.Failed(shared.WrapError("storage", "Get", shared.ErrTransport, "undecodable remote content", err))
	}
	return attendance.Found(raw, dto.SHA)
}

// Put writes content at path. Each attempt re-fetches the current sha first;
// a conflict triggers another refetch-and-write cycle. Any other failure, or
// running out of attempts, stores the document in the fallback store.
func (a *DocumentStoreAdapter) Put(ctx context.Context, path string, content []byte, message string) (attendance.PutOutcome, error) {
	var revision string
	err := a.stale.Do(ctx, func(ctx context.Context) error {
		sha, err := a.currentSHA(ctx, path)
		if err != nil {
			return retry.Permanent(err)
		}

		var resp *github.PutContentsResponse
		err = a.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			resp, err = a.client.PutContents(ctx, path, github.NewPutContentsRequest(message, content, "", sha))
			return err
		})
		if err != nil {
			if shared.IsStaleWrite(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		revision = resp.Revision()
		return nil
	})
	if err == nil {
		return attendance.PutOutcome{Revision: revision}, nil
	}

	a.logger.Warn("remote write failed, saving to fallback store",
		"path", path,
		"error", err,
		"breaker", a.breaker.State().String(),
		"rejected_by_breaker", circuitbreaker.IsRejected(err),
	)

	// The caller may have given up on the request; the document still has to land somewhere.
	saveCtx := context.WithoutCancel(ctx)
	ferr := retry.StorageRetrier().Do(saveCtx, func(ctx context.Context) error {
		return retry.Retryable(a.fallback.Save(ctx, path, content))
	})
	if ferr != nil {
		return attendance.PutOutcome{}, shared.WrapError("storage", "Put", shared.ErrServiceUnavailable,
			"remote and fallback writes both failed", errors.Join(err, ferr))
	}
	return attendance.PutOutcome{Fallback: true}, nil
}

// currentSHA returns the revision a write must replace, or "" when the file
// does not exist yet. Only the sha is read: files over 1 MB come back with
// encoding "none" and no content.
func (a *DocumentStoreAdapter) currentSHA(ctx context.Context, path string) (string, error) {
	var dto *github.ContentsDTO
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		dto, err = a.client.GetContents(ctx, path)
		return err
	})
	switch {
	case err == nil:
		return dto.SHA, nil
	case shared.IsNotFound(err):
		return "", nil
	default:
		return "", err
	}
}

// Ping checks the remote store, bypassing the breaker.
func (a *DocumentStoreAdapter) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return fmt.Errorf("github contents: %w", err)
	}
	return nil
}

// BreakerState reports the circuit state for health output.
func (a *DocumentStoreAdapter) BreakerState() circuitbreaker.State {
	return a.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFLINE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// OfflineContentsClient stands in when no repository is configured. There is
// no remote document, and every write fails as unavailable, so reads and
// writes go to the fallback store.
type OfflineContentsClient struct{}

var _ ContentsClient = OfflineContentsClient{}

var (
	errNoDocument = shared.NewDomainError("storage", "GetContents", shared.ErrNotFound, "no remote repository configured")
	errOffline    = shared.NewDomainError("storage", "PutContents", shared.ErrServiceUnavailable, "no remote repository configured")
)

func (OfflineContentsClient) GetContents(ctx context.Context, path string) (*github.ContentsDTO, error) {
	return nil, errNoDocument
}

func (OfflineContentsClient) PutContents(ctx context.Context, path string, req github.PutContentsRequest) (*github.PutContentsResponse, error) {
	return nil, errOffline
}

func (OfflineContentsClient) Ping(ctx context.Context) error {
	return errOffline
}
