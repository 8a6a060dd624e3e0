package db

import "github.com/zeptools/gw-dbi/logger"

// Client is the part shared by every backend client: lifecycle plus a typed handle.
type Client[T any] interface {
	Init() error
	Close() error
	DBHandle() T // generic handle
}

// CloseClient closes c and logs the outcome under name. A nil client is a no-op.
func CloseClient[T any](name string, c Client[T]) {
	if c == nil {
		logger.Info("nothing to close", logger.Ctx{"client": name})
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close client", logger.Ctx{"client": name, "err": err})
	} else {
		logger.Info("client closed", logger.Ctx{"client": name})
	}
}
