package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// cfgblockCollector implements prometheus.Collector, reading store
// counters and snapshots on each scrape.
type cfgblockCollector struct {
	srv *Server

	// Store counters
	parsesTotal    *prometheus.Desc
	linesTotal     *prometheus.Desc
	anomaliesTotal *prometheus.Desc
	lookupsTotal   *prometheus.Desc
	missesTotal    *prometheus.Desc

	// Per-device gauges
	devices          *prometheus.Desc
	deviceBlocks     *prometheus.Desc
	deviceAnomalies  *prometheus.Desc
	deviceLoadedTime *prometheus.Desc

	uptime *prometheus.Desc
}

func newCollector(srv *Server) *cfgblockCollector {
	return &cfgblockCollector{
		srv: srv,

		parsesTotal: prometheus.NewDesc(
			"cfgblock_parses_total",
			"Total configurations parsed into the store.",
			nil, nil,
		),
		linesTotal: prometheus.NewDesc(
			"cfgblock_lines_total",
			"Total configuration lines parsed.",
			nil, nil,
		),
		anomaliesTotal: prometheus.NewDesc(
			"cfgblock_anomalies_total",
			"Total indentation anomalies recorded.",
			nil, nil,
		),
		lookupsTotal: prometheus.NewDesc(
			"cfgblock_block_lookups_total",
			"Total block selections against stored devices.",
			nil, nil,
		),
		missesTotal: prometheus.NewDesc(
			"cfgblock_block_misses_total",
			"Total block selections that found nothing.",
			nil, nil,
		),
		devices: prometheus.NewDesc(
			"cfgblock_devices",
			"Number of devices in the store.",
			nil, nil,
		),
		deviceBlocks: prometheus.NewDesc(
			"cfgblock_device_blocks",
			"Top-level blocks in the current snapshot.",
			[]string{"device"}, nil,
		),
		deviceAnomalies: prometheus.NewDesc(
			"cfgblock_device_anomalies",
			"Indentation anomalies in the current snapshot.",
			[]string{"device"}, nil,
		),
		deviceLoadedTime: prometheus.NewDesc(
			"cfgblock_device_loaded_timestamp_seconds",
			"Unix time the current snapshot was loaded.",
			[]string{"device"}, nil,
		),
		uptime: prometheus.NewDesc(
			"cfgblock_uptime_seconds",
			"Seconds since the API server started.",
			nil, nil,
		),
	}
}

func (c *cfgblockCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.parsesTotal
	ch <- c.linesTotal
	ch <- c.anomaliesTotal
	ch <- c.lookupsTotal
	ch <- c.missesTotal
	ch <- c.devices
	ch <- c.deviceBlocks
	ch <- c.deviceAnomalies
	ch <- c.deviceLoadedTime
	ch <- c.uptime
}

func (c *cfgblockCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue,
		time.Since(c.srv.startTime).Seconds())

	store := c.srv.store
	if store == nil {
		return
	}

	st := store.Stats()
	ch <- prometheus.MustNewConstMetric(c.parsesTotal, prometheus.CounterValue, float64(st.Parses))
	ch <- prometheus.MustNewConstMetric(c.linesTotal, prometheus.CounterValue, float64(st.Lines))
	ch <- prometheus.MustNewConstMetric(c.anomaliesTotal, prometheus.CounterValue, float64(st.Anomalies))
	ch <- prometheus.MustNewConstMetric(c.lookupsTotal, prometheus.CounterValue, float64(st.Lookups))
	ch <- prometheus.MustNewConstMetric(c.missesTotal, prometheus.CounterValue, float64(st.Misses))

	snaps := store.Snapshots()
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(len(snaps)))
	for _, s := range snaps {
		ch <- prometheus.MustNewConstMetric(c.deviceBlocks, prometheus.GaugeValue,
			float64(s.Result.Tree.Len()), s.Device)
		ch <- prometheus.MustNewConstMetric(c.deviceAnomalies, prometheus.GaugeValue,
			float64(len(s.Result.Errors)), s.Device)
		ch <- prometheus.MustNewConstMetric(c.deviceLoadedTime, prometheus.GaugeValue,
			float64(s.LoadedAt.Unix()), s.Device)
	}
}
