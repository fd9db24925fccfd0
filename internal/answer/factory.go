package answer

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
)

// Set holds the composers available to the query pipeline. LLM is nil when
// no provider is configured.
type Set struct {
	Default Composer
	LLM     Composer
}

// Pick returns the LLM composer when one is configured and the caller asked
// for it, otherwise the default.
func (s Set) Pick(useLLM bool) Composer {
	if useLLM && s.LLM != nil {
		return s.LLM
	}
	return s.Default
}

// FromConfig builds the composer set for cfg.Provider.
func FromConfig(cfg config.AnswerConfig, m *metrics.Metrics) (Set, error) {
	set := Set{Default: Simple{}}
	switch cfg.Provider {
	case "", config.ProviderSimple:
		return set, nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return Set{}, fmt.Errorf("answer provider %q requires an API key", cfg.Provider)
		}
		set.LLM = NewGuarded(NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), set.Default, cfg, m)
		return set, nil
	default:
		return Set{}, fmt.Errorf("unknown answer provider %q", cfg.Provider)
	}
}
