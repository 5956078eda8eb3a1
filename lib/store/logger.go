package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

var installLogger sync.Once

// redisLogger routes go-redis internal messages into the package logger.
type redisLogger struct{}

func (redisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	log.WithField("component", "go-redis").Debug(fmt.Sprintf(format, v...))
}

func useRedisLogger() {
	installLogger.Do(func() {
		redis.SetLogger(redisLogger{})
	})
}
