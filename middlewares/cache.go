package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventapi/models"
)

const (
	CacheListPrefix  = "cache:events:list:"
	CacheTodayPrefix = "cache:events:today:"
	CacheItemPrefix  = "cache:events:item:"
)

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// headers that belong to one request and must not be replayed
var perRequestHeaders = map[string]bool{
	"X-Request-Id": true,
	"X-Cache":      true,
	"X-Quota-Used": true,
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom maps a GET request to its redis key. Item keys keep the raw
// id so a single event can be purged without a scan of every item.
func CacheKeyFrom(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return ""
	}
	switch c.FullPath() {
	case "/event/:event_id":
		id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
		if err != nil {
			return ""
		}
		return CacheItemPrefix + strconv.FormatInt(id, 10)
	case "/event/today":
		return CacheTodayPrefix + models.FormatDate(models.DateOf(time.Now()))
	case "/event/":
		return CacheListPrefix + sha1Hex(c.Request.URL.RawQuery)
	default:
		return ""
	}
}

// ResponseCache serves 2xx GET responses from redis for ttl.
func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CacheKeyFrom(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if b, err := rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				for k, vals := range hit.Header {
					for _, v := range vals {
						c.Writer.Header().Add(k, v)
					}
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Status(hit.Status)
				_, _ = c.Writer.Write(hit.Body)
				c.Abort()
				return
			}
		}

		buf := &bytes.Buffer{}
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: buf}
		c.Writer = bw

		c.Next()

		if bw.Status() >= 200 && bw.Status() < 300 {
			header := map[string][]string{}
			for k, v := range bw.Header() {
				if !perRequestHeaders[k] {
					header[k] = v
				}
			}
			item := cachedBody{Status: bw.Status(), Header: header, Body: buf.Bytes()}

			var o bytes.Buffer
			if err := gob.NewEncoder(&o).Encode(item); err == nil {
				_ = rdb.Set(ctx, key, o.Bytes(), ttl).Err()
			}
		}
	}
}

// bufferedWriter tees the body into buf and marks the response as a miss
// before the header is flushed.
type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.ResponseWriter.Header().Set("X-Cache", "MISS")
	w.ResponseWriter.WriteHeader(code)
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.ResponseWriter.Header().Set("X-Cache", "MISS")
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
