/*Package metrics wraps datadog-go to facilitate metric recording.
Naming convention:
- Internal process time: *.time
- External latency: *.latency
- Error: *.err
*/
package metrics

import (
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/spf13/viper"

	"github.com/mitakash/pymaker/base/log"
)

// Ender finishes a timing started with BumpTime.
type Ender interface {
	End()
}

// Service records metrics under a package-name prefix.
type Service interface {
	BumpAvg(key string, val float64, tags ...string)
	BumpSum(key string, val float64, tags ...string)
	BumpHistogram(key string, val float64, tags ...string)
	BumpTime(key string, tags ...string) Ender
}

type service struct {
	prefix string
	client *statsd.Client
}

type ender struct {
	svc   *service
	key   string
	tags  []string
	start time.Time
}

// New creates a metric client with pkgName as prefix. When the statsd agent
// address is not configured or unreachable, the returned service is a no-op.
func New(pkgName string) Service {
	addr := viper.GetString("statsd.addr")
	if addr == "" {
		return &service{prefix: pkgName}
	}
	client, err := statsd.New(addr, statsd.WithTags([]string{
		"env:" + viper.GetString("env_name"),
		"app:" + viper.GetString("app_name"),
	}))
	if err != nil {
		log.Log().WithField("err", err).Warn("statsd dial failed, metrics disabled")
		return &service{prefix: pkgName}
	}
	return &service{prefix: pkgName, client: client}
}

func (s *service) name(key string) string {
	return s.prefix + "." + key
}

func pairTags(tags []string) []string {
	// accept alternating key, value arguments like the callers pass
	out := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		out = append(out, strings.Join(tags[i:i+2], ":"))
	}
	return out
}

func (s *service) BumpAvg(key string, val float64, tags ...string) {
	if s.client == nil {
		return
	}
	_ = s.client.Gauge(s.name(key), val, pairTags(tags), 1)
}

func (s *service) BumpSum(key string, val float64, tags ...string) {
	if s.client == nil {
		return
	}
	_ = s.client.Count(s.name(key), int64(val), pairTags(tags), 1)
}

func (s *service) BumpHistogram(key string, val float64, tags ...string) {
	if s.client == nil {
		return
	}
	_ = s.client.Histogram(s.name(key), val, pairTags(tags), 1)
}

func (s *service) BumpTime(key string, tags ...string) Ender {
	return &ender{svc: s, key: key, tags: tags, start: time.Now()}
}

func (e *ender) End() {
	if e.svc.client == nil {
		return
	}
	_ = e.svc.client.Timing(e.svc.name(e.key), time.Since(e.start), pairTags(e.tags), 1)
}
