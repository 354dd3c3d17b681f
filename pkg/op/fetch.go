package op

import (
	"context"
	"fmt"
	"io"
	"net/http"

	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/internal/version"
	"github.com/hashicorp/go-multierror"
)

// Fetcher retrieves a remote resource. The caller closes the returned body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "stationcore/"+version.GetVersion())

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// FetchFirst tries candidates in order and returns the content of the first
// one that succeeds, together with its url.
func FetchFirst(ctx context.Context, f Fetcher, candidates []string) ([]byte, string, error) {
	var errs error
	for _, url := range candidates {
		body, err := f.Fetch(ctx, url)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to read %s: %w", url, err))
			continue
		}
		return data, url, nil
	}
	if errs == nil {
		errs = cnst.ErrNoCandidates
	}
	return nil, "", errs
}
