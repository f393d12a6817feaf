package sensor

import (
	"context"
	"strings"

	"github.com/frostyard/glacierctl/internal/errors"
	"github.com/frostyard/glacierctl/internal/logger"
)

// Reading is one accepted CPU temperature sample. Invalid readings carry no
// value; callers keep whatever they last saw.
type Reading struct {
	Value float64
	Valid bool
}

// Sample is a raw temperature sample reported by a platform Reader.
// Keys are normalized to lower case before matching.
type Sample struct {
	Key   string
	Value float64
}

// Reader lists the temperature sensors the platform exposes.
type Reader interface {
	Read(ctx context.Context) ([]Sample, error)
}

// matcher is one CPU-identifying predicate. Matchers are evaluated in
// priority order, first match wins.
type matcher struct {
	name  string
	match func(key string) bool
}

func tokenMatcher(token string) matcher {
	return matcher{
		name:  token,
		match: func(key string) bool { return strings.Contains(key, token) },
	}
}

// cpuMatchers orders vendor-specific sensor names ahead of generic CPU
// tokens. Tctl is the AMD package sensor reported by the k10temp driver.
var cpuMatchers = []matcher{
	tokenMatcher("tctl"),
	tokenMatcher("k10temp"),
	tokenMatcher("coretemp"),
	tokenMatcher("cpu"),
	tokenMatcher("core"),
	tokenMatcher("package"),
	// ACPI thermal zones, the only source WMI exposes
	tokenMatcher("thermal"),
}

// Sampler picks the best CPU temperature out of whatever the platform
// Reader reports. The matched sensor key is cached after the first hit so
// later ticks try it before re-scanning the full list.
type Sampler struct {
	reader  Reader
	lastKey string
}

func NewSampler(reader Reader) *Sampler {
	return &Sampler{reader: reader}
}

// Sample returns the current CPU temperature. No matching sensor is
// sensor_unavailable, a reader failure is sensor_read_failed; in both cases
// the caller retains its last known good value.
func (s *Sampler) Sample(ctx context.Context) (Reading, error) {
	errFactory := errors.New()

	samples, err := s.reader.Read(ctx)
	if err != nil {
		return Reading{}, errFactory.Wrap(ErrReadFailed, err)
	}

	if s.lastKey != "" {
		for i := range samples {
			if normalize(samples[i].Key) == s.lastKey && samples[i].Value > 0 {
				return Reading{Value: samples[i].Value, Valid: true}, nil
			}
		}
		// Cached sensor disappeared or went bogus, fall through to a scan
		s.lastKey = ""
	}

	for _, m := range cpuMatchers {
		for i := range samples {
			key := normalize(samples[i].Key)
			if m.match(key) && samples[i].Value > 0 {
				s.lastKey = key
				logger.Debug().
					Str("sensor", samples[i].Key).
					Str("matcher", m.name).
					Float64("value", samples[i].Value).
					Msg("CPU sensor selected")

				return Reading{Value: samples[i].Value, Valid: true}, nil
			}
		}
	}

	return Reading{}, errFactory.New(ErrUnavailable)
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
