package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// FakeFetcher serves in-memory content by url.
type FakeFetcher struct {
	Files    map[string][]byte
	Requests []string
}

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{Files: map[string][]byte{}}
}

func (f *FakeFetcher) Serve(url string, content []byte) *FakeFetcher {
	f.Files[url] = content
	return f
}

func (f *FakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.Requests = append(f.Requests, url)
	data, ok := f.Files[url]
	if !ok {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status 404", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
