package prom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	xhttp "github.com/whatsmanager/campaign-gateway/pkg/http"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
)

const (
	SystemCampaigns = "campaign"
	SystemMessages  = "message"
)

const (
	MetricCampaignsStarted  = "started_total"
	MetricMessagesSent      = "sent_total"
	MetricMessagesFailed    = "failed_total"
	MetricMessagesPromoted  = "retry_promoted_total"
	MetricSendDuration      = "send_duration_seconds"
	MetricQueueDepth        = "queue_depth"
	MetricStatusReconciled  = "status_reconciled_total"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var counters = make(map[string]prometheus.Counter)
var counterVecs = make(map[string]*prometheus.CounterVec)
var gauges = make(map[string]prometheus.Gauge)
var histograms = make(map[string]prometheus.Histogram)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounter(SystemCampaigns, MetricCampaignsStarted))
	hasError(createCounter(SystemMessages, MetricMessagesSent))
	hasError(createCounterVec(SystemMessages, MetricMessagesFailed, []string{"error_code"}))
	hasError(createCounter(SystemMessages, MetricMessagesPromoted))
	hasError(createCounterVec(SystemMessages, MetricStatusReconciled, []string{"status"}))
	hasError(createHistogram(SystemMessages, MetricSendDuration))
	hasError(createGauge(SystemMessages, MetricQueueDepth))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	counters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(counters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	counterVecs[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(counterVecs[subsystem+name])
}

func createGauge(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	gauges[subsystem+name] = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(gauges[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	histograms[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return prometheus.Register(histograms[subsystem+name])
}

func IncCounter(subsystem, name string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counters[subsystem+name]; ok {
		v.Inc()
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counterVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Inc()
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGauge(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := gauges[subsystem+name]; ok {
		v.Set(number)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := histograms[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

// Domain helpers

func CampaignStarted() {
	IncCounter(SystemCampaigns, MetricCampaignsStarted)
}

func MessageSent(duration float64) {
	IncCounter(SystemMessages, MetricMessagesSent)
	AddHistogram(SystemMessages, MetricSendDuration, duration)
}

func MessageFailed(errorCode string) {
	if errorCode == "" {
		errorCode = "unknown"
	}
	IncCounterVec(SystemMessages, MetricMessagesFailed, errorCode)
}

func MessagesPromoted(n float64) {
	AddCounter(SystemMessages, MetricMessagesPromoted, n)
}

func StatusReconciled(status string) {
	IncCounterVec(SystemMessages, MetricStatusReconciled, status)
}

func QueueDepth(n float64) {
	SetGauge(SystemMessages, MetricQueueDepth, n)
}
