package wmts

import (
	"context"
	"io"
	"net/http"

	"globe/internal/httputil"

	"github.com/juju/errors"
)

// ErrFetchFailure means the capability document could not be retrieved or read.
const ErrFetchFailure = errors.ConstError("capabilities fetch failed")

// MaxDocumentBytes caps the size of a capability document.
const MaxDocumentBytes = 16 << 20

// Fetcher retrieves a capability document. Implementations must honour ctx
// cancellation and be safe to call from any goroutine.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (*Capabilities, error)
}

// HTTPFetcher fetches capabilities with a GET request.
type HTTPFetcher struct {
	Client httputil.HTTPClient
}

// NewHTTPFetcher returns a fetcher using client, or a default client when nil.
func NewHTTPFetcher(client httputil.HTTPClient) *HTTPFetcher {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &HTTPFetcher{Client: client}
}

// Fetch implements Fetcher. Every failure is annotated ErrFetchFailure.
func (f *HTTPFetcher) Fetch(ctx context.Context, endpoint string) (*Capabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Annotatef(ErrFetchFailure, "building request for %q: %v", endpoint, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Annotatef(ErrFetchFailure, "GET %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Annotatef(ErrFetchFailure, "GET %s: status %d", endpoint, resp.StatusCode)
	}

	caps, err := Decode(io.LimitReader(resp.Body, MaxDocumentBytes))
	if err != nil {
		return nil, errors.Annotatef(ErrFetchFailure, "%s: %v", endpoint, err)
	}
	logger.Debugf("fetched %q: %d layers, %d matrix sets", caps.Service.Title, len(caps.Layers), len(caps.TileMatrixSets))
	return caps, nil
}
