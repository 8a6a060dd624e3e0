package sqldb

import (
	"context"
)

type Client interface {
	Init() error
	Close() error
	Ping(ctx context.Context) error
	DBHandle() DBHandle
	GetConf() *Conf
	GetDSN() string
}
