package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSessionSource struct {
	byTransport map[string]int
	maxDepth    int
}

func (s *fakeSessionSource) SessionsByTransport() map[string]int { return s.byTransport }

func (s *fakeSessionSource) MaxQueueDepth() int { return s.maxDepth }

type fakeGroupSource struct {
	count int
}

func (s *fakeGroupSource) GroupCount() int { return s.count }

func newTestMetrics() *Metrics {
	return New(WithRegisterer(prometheus.NewRegistry()))
}

func TestMetricsCounters(t *testing.T) {
	m := newTestMetrics()

	m.ConnectionOpened("websocket")
	m.ConnectionOpened("websocket")
	m.ConnectionOpened("telnet")
	m.AuthFailure("invalid_token")
	m.CommandProcessed("ok")
	m.CommandProcessed("unknown_command")
	m.EnvelopePublished()
	m.EnvelopeDelivered()
	m.EnvelopeDelivered()
	m.SlowConsumerEvicted()

	testutil.AssertEqual(t, "websocket connections",
		promtestutil.ToFloat64(m.connectionsTotal.WithLabelValues("websocket")), 2.0)
	testutil.AssertEqual(t, "telnet connections",
		promtestutil.ToFloat64(m.connectionsTotal.WithLabelValues("telnet")), 1.0)
	testutil.AssertEqual(t, "auth failures",
		promtestutil.ToFloat64(m.authFailuresTotal.WithLabelValues("invalid_token")), 1.0)
	testutil.AssertEqual(t, "ok commands",
		promtestutil.ToFloat64(m.commandsTotal.WithLabelValues("ok")), 1.0)
	testutil.AssertEqual(t, "published",
		promtestutil.ToFloat64(m.envelopesPublished), 1.0)
	testutil.AssertEqual(t, "delivered",
		promtestutil.ToFloat64(m.envelopesDelivered), 2.0)
	testutil.AssertEqual(t, "evictions",
		promtestutil.ToFloat64(m.evictionsTotal), 1.0)
}

func TestMetricsUpdateSamplesSources(t *testing.T) {
	m := newTestMetrics()
	m.SetSessionSource(&fakeSessionSource{
		byTransport: map[string]int{"websocket": 3, "ssh": 1},
		maxDepth:    7,
	})
	m.SetGroupSource(&fakeGroupSource{count: 5})

	m.Update()

	testutil.AssertEqual(t, "websocket gauge",
		promtestutil.ToFloat64(m.sessionsConnected.WithLabelValues("websocket")), 3.0)
	testutil.AssertEqual(t, "ssh gauge",
		promtestutil.ToFloat64(m.sessionsConnected.WithLabelValues("ssh")), 1.0)
	testutil.AssertEqual(t, "queue depth gauge",
		promtestutil.ToFloat64(m.queueDepthMax), 7.0)
	testutil.AssertEqual(t, "groups gauge",
		promtestutil.ToFloat64(m.groupsActive), 5.0)
}

func TestMetricsUpdateWithoutSources(t *testing.T) {
	m := newTestMetrics()
	m.Update()
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.ConnectionOpened("websocket")
	m.AuthFailure("invalid_token")
	m.CommandProcessed("ok")
	m.EnvelopePublished()
	m.EnvelopeDelivered()
	m.SlowConsumerEvicted()
}

func TestMetricsHandler(t *testing.T) {
	m := newTestMetrics()
	m.SetGroupSource(&fakeGroupSource{count: 2})
	m.EnvelopePublished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "status", rec.Code, 200)
	for _, series := range []string{
		"mudlink_groups_active 2",
		"mudlink_envelopes_published_total 1",
	} {
		if !strings.Contains(string(body), series) {
			t.Errorf("expected scrape output to contain %q", series)
		}
	}
}
