// Package notebooklm exposes the NotebookLM web UI as a small capability
// surface. The AI router depends only on the Driver interface; the rod-backed
// implementation lives behind it so the state machine is testable without a
// browser.
package notebooklm

import (
	"context"
	"errors"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
)

// ErrDriverTimeout means a browser automation step exceeded its deadline.
var ErrDriverTimeout = errors.New("notebooklm driver step timed out")

// SessionHandle identifies one uploaded-source notebook session.
type SessionHandle string

// Driver is the NotebookLM capability surface consumed by the AI router.
type Driver interface {
	// DiscoverSources has NotebookLM search the web for the topic through
	// its own UI and produce a report. No chunks are involved.
	DiscoverSources(ctx context.Context, req discovery.Request) (string, error)

	// UploadChunks pushes content chunks into a fresh notebook as pasted
	// sources. Chunks must be presented ascending ordinal within source,
	// sources in discovery order.
	UploadChunks(ctx context.Context, chunks []chunker.Chunk) (SessionHandle, error)

	// GenerateEvidence asks the notebook for an evidence digest of the
	// uploaded sources.
	GenerateEvidence(ctx context.Context, handle SessionHandle) (string, error)
}
