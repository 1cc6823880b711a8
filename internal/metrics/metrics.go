// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 進捗リコンサイラ、ワーカー、ハンドラー層から利用する。
type MetricsCollector interface {
	RecordReportSuccess()
	RecordReportFailure(reason string)
	RecordRegressionPrevented()
	RecordCatalogSyncSuccess()
	RecordCatalogSyncFailure()
	RecordNewsFetchSuccess(gameID string)
	RecordNewsFetchFailure(gameID string, reason string)
	RecordNewsFetchLatency(duration time.Duration)
	RecordAnnouncementsUpserted(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reportSuccess        prometheus.Counter
	reportFail           *prometheus.CounterVec
	regressionPrevented  prometheus.Counter
	catalogSyncSuccess   prometheus.Counter
	catalogSyncFail      prometheus.Counter
	newsFetchSuccess     prometheus.Counter
	newsFetchFail        *prometheus.CounterVec
	newsFetchLatency     prometheus.Histogram
	announcementsUpsert  prometheus.Counter
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reportSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_report_success_total",
			Help: "プレイ報告の取り込み成功の合計数",
		}),
		reportFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamebox_report_fail_total",
			Help: "プレイ報告の取り込み失敗の合計数",
		}, []string{"reason"}),
		regressionPrevented: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_report_regression_prevented_total",
			Help: "単調性マージにより棄却されたスコア・達成フラグ後退の合計数",
		}),
		catalogSyncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_catalog_sync_success_total",
			Help: "カタログ同期成功の合計数",
		}),
		catalogSyncFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_catalog_sync_fail_total",
			Help: "カタログ同期失敗の合計数",
		}),
		newsFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_news_fetch_success_total",
			Help: "ニュースフィード取得成功の合計数",
		}),
		newsFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamebox_news_fetch_fail_total",
			Help: "ニュースフィード取得失敗の合計数",
		}, []string{"reason"}),
		newsFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamebox_news_fetch_latency_seconds",
			Help:    "ニュースフィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		announcementsUpsert: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamebox_announcements_upserted_total",
			Help: "アップサートされたお知らせの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamebox_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.reportSuccess,
		c.reportFail,
		c.regressionPrevented,
		c.catalogSyncSuccess,
		c.catalogSyncFail,
		c.newsFetchSuccess,
		c.newsFetchFail,
		c.newsFetchLatency,
		c.announcementsUpsert,
		c.httpStatus,
	)

	return c
}

// RecordReportSuccess はプレイ報告の取り込み成功を記録する。
func (c *Collector) RecordReportSuccess() {
	c.reportSuccess.Inc()
}

// RecordReportFailure はプレイ報告の取り込み失敗を記録する。
func (c *Collector) RecordReportFailure(reason string) {
	c.reportFail.WithLabelValues(reason).Inc()
}

// RecordRegressionPrevented は単調性マージによる後退棄却を記録する。
func (c *Collector) RecordRegressionPrevented() {
	c.regressionPrevented.Inc()
}

// RecordCatalogSyncSuccess はカタログ同期成功を記録する。
func (c *Collector) RecordCatalogSyncSuccess() {
	c.catalogSyncSuccess.Inc()
}

// RecordCatalogSyncFailure はカタログ同期失敗を記録する。
func (c *Collector) RecordCatalogSyncFailure() {
	c.catalogSyncFail.Inc()
}

// RecordNewsFetchSuccess はニュースフィード取得成功を記録する。
func (c *Collector) RecordNewsFetchSuccess(gameID string) {
	c.newsFetchSuccess.Inc()
}

// RecordNewsFetchFailure はニュースフィード取得失敗を記録する。
func (c *Collector) RecordNewsFetchFailure(gameID string, reason string) {
	c.newsFetchFail.WithLabelValues(reason).Inc()
}

// RecordNewsFetchLatency はニュースフィード取得のレイテンシを記録する。
func (c *Collector) RecordNewsFetchLatency(duration time.Duration) {
	c.newsFetchLatency.Observe(duration.Seconds())
}

// RecordAnnouncementsUpserted はアップサートされたお知らせ数を記録する。
func (c *Collector) RecordAnnouncementsUpserted(count int) {
	c.announcementsUpsert.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
