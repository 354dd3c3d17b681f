package op_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/pkg/op"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("fetching", func() {
	var server *httptest.Server
	var hits []string
	var agent string

	BeforeEach(func() {
		hits = nil
		mux := http.NewServeMux()
		mux.HandleFunc("/primary/rc.local", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			http.Error(w, "gone", http.StatusNotFound)
		})
		mux.HandleFunc("/mirror/rc.local", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			agent = r.Header.Get("User-Agent")
			_, _ = fmt.Fprint(w, "#!/bin/sh -e\nexit 0\n")
		})
		server = httptest.NewServer(mux)
	})
	AfterEach(func() {
		server.Close()
	})

	It("falls back to the next candidate", func() {
		data, from, err := op.FetchFirst(context.Background(), op.NewHTTPFetcher(), []string{
			server.URL + "/primary/rc.local",
			server.URL + "/mirror/rc.local",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(from).To(Equal(server.URL + "/mirror/rc.local"))
		Expect(string(data)).To(Equal("#!/bin/sh -e\nexit 0\n"))
		Expect(hits).To(Equal([]string{"/primary/rc.local", "/mirror/rc.local"}))
		Expect(agent).To(HavePrefix("stationcore/"))
	})
	It("stops at the first success", func() {
		_, _, err := op.FetchFirst(context.Background(), op.NewHTTPFetcher(), []string{
			server.URL + "/mirror/rc.local",
			server.URL + "/primary/rc.local",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(hits).To(Equal([]string{"/mirror/rc.local"}))
	})
	It("reports every failed candidate", func() {
		_, _, err := op.FetchFirst(context.Background(), op.NewHTTPFetcher(), []string{
			server.URL + "/primary/rc.local",
			server.URL + "/missing",
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("/primary/rc.local"))
		Expect(err.Error()).To(ContainSubstring("/missing"))
	})
	It("fails without candidates", func() {
		_, _, err := op.FetchFirst(context.Background(), op.NewHTTPFetcher(), nil)
		Expect(err).To(MatchError(cnst.ErrNoCandidates))
	})
})
