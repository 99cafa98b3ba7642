// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証結果のラベル値
const (
	AuthResultSuccess = "success"
	AuthResultInvalid = "invalid"
	AuthResultExpired = "expired"
	AuthResultReused  = "reused"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordLoginTokenIssued()
	RecordLoginMailFailure()
	RecordAuthentication(result string)
	RecordSessionStarted()
	RecordListCreated(owned bool)
	RecordItemAdded()
	RecordValidationFailure(code string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tokensIssued       prometheus.Counter
	mailFailures       prometheus.Counter
	authentications    *prometheus.CounterVec
	sessionsStarted    prometheus.Counter
	listsCreated       *prometheus.CounterVec
	itemsAdded         prometheus.Counter
	validationFailures *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "superlists_login_tokens_issued_total",
			Help: "発行したログイントークンの合計数",
		}),
		mailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "superlists_login_mail_failures_total",
			Help: "ログインリンクメールの送信失敗数",
		}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superlists_authentications_total",
			Help: "結果別のトークン認証数",
		}, []string{"result"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "superlists_sessions_started_total",
			Help: "確立したログインセッションの合計数",
		}),
		listsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superlists_lists_created_total",
			Help: "作成されたリスト数（所有者の有無別）",
		}, []string{"owned"}),
		itemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "superlists_items_added_total",
			Help: "既存リストに追加された項目数",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superlists_item_validation_failures_total",
			Help: "エラーコード別の項目バリデーション失敗数",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superlists_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "superlists_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.tokensIssued,
		c.mailFailures,
		c.authentications,
		c.sessionsStarted,
		c.listsCreated,
		c.itemsAdded,
		c.validationFailures,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLoginTokenIssued はログイントークンの発行を記録する。
func (c *Collector) RecordLoginTokenIssued() {
	c.tokensIssued.Inc()
}

// RecordLoginMailFailure はログインリンクメールの送信失敗を記録する。
func (c *Collector) RecordLoginMailFailure() {
	c.mailFailures.Inc()
}

// RecordAuthentication はトークン認証の結果を記録する。
func (c *Collector) RecordAuthentication(result string) {
	c.authentications.WithLabelValues(result).Inc()
}

// RecordSessionStarted はセッション確立を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordListCreated はリスト作成を記録する。
func (c *Collector) RecordListCreated(owned bool) {
	c.listsCreated.WithLabelValues(strconv.FormatBool(owned)).Inc()
}

// RecordItemAdded は項目追加を記録する。
func (c *Collector) RecordItemAdded() {
	c.itemsAdded.Inc()
}

// RecordValidationFailure は項目バリデーション失敗を記録する。
func (c *Collector) RecordValidationFailure(code string) {
	c.validationFailures.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
