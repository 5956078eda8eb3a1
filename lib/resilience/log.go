// Package resilience provides the resilient acquisition and reconnect engine
// that sits in front of a connection pool.
package resilience

import (
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()
