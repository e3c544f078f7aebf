package adapter

import (
	"os"

	"github.com/neuwcodebox/disaster-feed/internal/adapter/pews"
	"github.com/neuwcodebox/disaster-feed/internal/adapter/quakesnap"
	"github.com/neuwcodebox/disaster-feed/internal/adapter/textalert"
	"github.com/neuwcodebox/disaster-feed/internal/adapter/weather"
	"github.com/neuwcodebox/disaster-feed/internal/adapter/wildfire"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

// Registry is the Source Registry: a static, compile-time list of
// every known adapter. No mutation after New.
type Registry struct {
	adapters []Adapter
	byID     map[model.Source]Adapter
}

// New builds the registry from a compile-time list of adapters, wiring in
// the env vars each one needs (KMA_API_KEY, the PEWS simulation pair).
func New(kmaAPIKey string) *Registry {
	list := []Adapter{
		textalert.New(envOr("TEXTALERT_URL", "https://example.invalid/textalert")),
		quakesnap.New(envOr("QUAKESNAP_URL", "https://example.invalid/quakesnap")),
		wildfire.New(envOr("WILDFIRE_URL", "https://example.invalid/wildfire")),
		pews.New(
			envOr("PEWS_BASE_URL", "https://example.invalid/pews"),
			os.Getenv("KMA_PEWS_SIM_EQK_ID"),
			os.Getenv("KMA_PEWS_SIM_START_AT"),
		),
		weather.New(envOr("WEATHER_URL", "https://example.invalid/weather"), kmaAPIKey),
	}

	byID := make(map[model.Source]Adapter, len(list))
	for _, a := range list {
		byID[a.SourceID()] = a
	}

	return &Registry{adapters: list, byID: byID}
}

// List returns every registered adapter.
func (r *Registry) List() []Adapter { return r.adapters }

// Get looks up an adapter by source id.
func (r *Registry) Get(sourceID model.Source) (Adapter, bool) {
	a, ok := r.byID[sourceID]
	return a, ok
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
