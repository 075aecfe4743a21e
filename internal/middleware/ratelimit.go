package middleware

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/praxislabs/foresight/internal/request"
)

const defaultRatelimitRate = "10-S"

// RateLimit returns middleware that uses ulule/limiter keyed on the client
// IP. With a Redis client the limit is shared across instances; without one
// it falls back to an in-memory store.
func RateLimit(redisClient *redis.Client, rateStr string) (func(http.Handler) http.Handler, error) {
	if rateStr == "" {
		rateStr = defaultRatelimitRate
	}
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStore(redisClient)
		if err != nil {
			return nil, err
		}
	} else {
		store = memorystore.NewStore()
	}

	instance := limiter.New(store, rate)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
