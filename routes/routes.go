package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"eventapi/middlewares"
	"eventapi/models"
	"eventapi/utils"
)

// Options carries the optional collaborators. The zero value serves the
// event endpoints with no cache, quota, rate limit or /metrics.
type Options struct {
	Redis       *redis.Client // enables ResponseCache and Quota
	CacheTTL    time.Duration
	Invalidator *utils.CacheInvalidator
	Limiter     *middlewares.RateLimiter
	WriteQuota  int // writes per client IP per day, 0 disables
	Gatherer    prometheus.Gatherer
	Now         func() time.Time // defaults to time.Now
}

type deps struct {
	events models.EventRepository
	inv    *utils.CacheInvalidator
	now    func() time.Time
}

// RegisterRoutes wires the event endpoints onto server. The store is owned
// by the caller.
func RegisterRoutes(server *gin.Engine, e models.EventRepository, opts Options) {
	d := &deps{events: e, inv: opts.Invalidator, now: opts.Now}
	if d.now == nil {
		d.now = time.Now
	}

	server.GET("/healthz", d.health)
	if opts.Gatherer != nil {
		server.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	server.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "The requested URL was not found on the server."})
	})

	events := server.Group("/event")
	if opts.Limiter != nil {
		events.Use(opts.Limiter.Middleware(middlewares.ClientIPKey))
	}
	if opts.Redis != nil {
		events.Use(middlewares.Quota(opts.Redis, middlewares.QuotaRule{
			Limit:  opts.WriteQuota,
			Window: 24 * time.Hour,
			KeyFn:  middlewares.WriteQuotaKey,
		}))
		events.Use(middlewares.ResponseCache(opts.Redis, opts.CacheTTL))
	}

	events.GET("/", d.getEvents)
	events.POST("/", d.createEvent)
	events.GET("/today", d.getTodayEvents)
	events.GET("/:event_id", d.getEvent)
	events.DELETE("/:event_id", d.deleteEvent)
}

// GET /healthz
func (d *deps) health(c *gin.Context) {
	if err := d.events.Ping(); err != nil {
		middlewares.Logger(c).Error().Err(err).Msg("store ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
