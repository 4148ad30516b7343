package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency    = metric.NewHistogram("1m1s")
	SendBatchSize      = metric.NewHistogram("10s1s")
	RecvBatchSize      = metric.NewHistogram("10s1s")
	EventsPerSecond    = metric.NewCounter("10s1s")
	SentBytesPerSecond = metric.NewCounter("10s1s")
	RecvBytesPerSecond = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("dvhop:SendBatchSize", SendBatchSize)
	expvar.Publish("dvhop:RecvBatchSize", RecvBatchSize)

	expvar.Publish("dvhop:Events/s", EventsPerSecond)
	expvar.Publish("dvhop:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("dvhop:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("dvhop:DispatchLatency (µs)", DispatchLatency)
}
