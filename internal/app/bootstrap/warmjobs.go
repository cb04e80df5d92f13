package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/psdstocks-cloud/creo-cache/internal/adapters/upstream"
	"github.com/psdstocks-cloud/creo-cache/internal/warmer"
)

// registerWarmTargets turns configured upstream targets into store jobs.
func registerWarmTargets(w *warmer.Warmer, store warmer.Setter, fetcher *upstream.Fetcher, targets []WarmTarget) error {
	for _, t := range targets {
		job := warmer.StoreJob(t.Name, t.Key, t.TTL, store, fetcher.JSON(t.URL))
		if err := w.Register(job); err != nil {
			return fmt.Errorf("warm target %q: %w", t.Name, err)
		}
	}
	return nil
}

func newUpstreamFetcher(cfg Config) *upstream.Fetcher {
	return upstream.NewFetcher(&http.Client{Timeout: cfg.WarmFetchTimeout})
}
