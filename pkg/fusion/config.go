package fusion

// Well-known source ids used by the built-in adapters. Nothing in the
// engine is limited to these; any source id with a configured reliability
// and priority works.
const (
	SourceCurated  = "curated"
	SourceWikidata = "wikidata"
	SourceText     = "text"
)

// Config carries the per-source coefficients the engine needs. It is
// injected into every resolve/fuse call so that callers stay in control
// of source trust and ordering; there is no package-level state.
type Config struct {
	// Reliability scales each source's evidence contribution before the
	// noisy-OR combination. Values outside [0,1] are clamped.
	Reliability map[string]float64

	// Priority orders candidates before resolution; lower runs first.
	// Sources missing from the map sort last.
	Priority map[string]int

	// DefaultReliability applies to sources missing from Reliability.
	DefaultReliability float64
}

// DefaultConfig returns the stock coefficients: the curated knowledge
// base is fully trusted, the collaborative triple store slightly less,
// and text-extraction co-occurrence least.
func DefaultConfig() Config {
	return Config{
		Reliability: map[string]float64{
			SourceCurated:  1.0,
			SourceWikidata: 0.8,
			SourceText:     0.5,
		},
		Priority: map[string]int{
			SourceCurated:  0,
			SourceWikidata: 1,
			SourceText:     2,
		},
		DefaultReliability: 0.5,
	}
}

func (c Config) reliability(source string) float64 {
	if r, ok := c.Reliability[source]; ok {
		return clamp01(r)
	}
	return clamp01(c.DefaultReliability)
}

const unknownPriority = 1 << 20

func (c Config) priority(source string) int {
	if p, ok := c.Priority[source]; ok {
		return p
	}
	return unknownPriority
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
