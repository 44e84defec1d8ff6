package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/seat-admission/internal/config"
)

// CacheStore holds cached responses by key.
type CacheStore interface {
    Get(ctx context.Context, key string) ([]byte, bool, error)
    Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
    DeletePrefix(ctx context.Context, prefix string) error
}

type redisCacheStore struct {
    rdb *redis.Client
}

func (s redisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
    bs, err := s.rdb.Get(ctx, key).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, false, nil
    }
    if err != nil {
        return nil, false, err
    }
    return bs, true, nil
}

func (s redisCacheStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
    return s.rdb.Set(ctx, key, val, ttl).Err()
}

// DeletePrefix walks the keyspace with SCAN; cached routes hold few keys.
func (s redisCacheStore) DeletePrefix(ctx context.Context, prefix string) error {
    var batch []string
    iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == 100 {
            if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
                return err
            }
            batch = batch[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(batch) > 0 {
        return s.rdb.Del(ctx, batch...).Err()
    }
    return nil
}

// cachedResponse is what a hit replays.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// ResponseCache serves repeated reads of catalogue routes from Redis and
// drops a route's entries when the catalogue changes.  A nil
// *ResponseCache passes every request through.
type ResponseCache struct {
    cfg   config.CacheConfig
    store CacheStore
}

// NewResponseCache returns nil when caching is disabled or Redis is
// unavailable.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return newResponseCache(cfg, redisCacheStore{rdb: rdb})
}

func newResponseCache(cfg config.CacheConfig, store CacheStore) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, store: store}
}

// routePrefix is the key prefix shared by every cached response of route.
func (rc *ResponseCache) routePrefix(route string) string {
    sum := sha1.Sum([]byte(route))
    return fmt.Sprintf("%s:r:%x:", rc.cfg.Prefix, sum[:8])
}

// keyFor hashes the query under the route prefix.  Cached routes are
// public, so the subject is never part of the key.
func (rc *ResponseCache) keyFor(c echo.Context) string {
    sum := sha1.Sum([]byte(c.Request().URL.RawQuery))
    return fmt.Sprintf("%s%x", rc.routePrefix(c.Path()), sum[:])
}

// Invalidate drops every cached response of the given route patterns,
// e.g. "/v1/dates".
func (rc *ResponseCache) Invalidate(ctx context.Context, routes ...string) error {
    if rc == nil {
        return nil
    }
    for _, route := range routes {
        if err := rc.store.DeletePrefix(ctx, rc.routePrefix(route)); err != nil {
            return fmt.Errorf("invalidate %s: %w", route, err)
        }
    }
    return nil
}

// Middleware caches 200 responses of the configured methods.  Bodies over
// MaxBodyBytes are served but never stored.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if rc == nil {
            return next
        }
        return func(c echo.Context) error {
            if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := rc.keyFor(c)

            if bs, ok, err := rc.store.Get(ctx, key); err != nil {
                log.Printf("cache: get %s: %v", key, err)
            } else if ok {
                var hit cachedResponse
                if err := json.Unmarshal(bs, &hit); err == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.overflow {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status:      cw.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        cw.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rc.store.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL); err != nil {
                log.Printf("cache: set %s: %v", key, err)
            }
            return nil
        }
    }
}

// captureWriter copies the response body while forwarding it.  Once the
// body passes limit the copy is dropped and overflow is set.
type captureWriter struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int64
    overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.overflow {
        if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
            cw.overflow = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}
