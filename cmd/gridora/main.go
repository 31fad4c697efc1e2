package main

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/internal/clock"
	"github.com/gridora/gridora/internal/config"
	"github.com/gridora/gridora/internal/device"
	"github.com/gridora/gridora/internal/migration"
	"github.com/gridora/gridora/internal/observability/logger"
	"github.com/gridora/gridora/internal/observability/metrics"
	"github.com/gridora/gridora/internal/order"
	"github.com/gridora/gridora/internal/payment"
	"github.com/gridora/gridora/internal/ratelimit"
	"github.com/gridora/gridora/internal/scheduler"
	"github.com/gridora/gridora/internal/server"
	"github.com/gridora/gridora/internal/telemetry"
	"github.com/gridora/gridora/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,

		device.Module,
		telemetry.Module,
		order.Module,
		payment.Module,
		ratelimit.Module,

		migration.Module,
		scheduler.Module,
		server.Module,
	)

	app.Run()
}

// newSnowflakeNode derives the generator's node id from the hostname so
// replicas do not mint colliding ids.
func newSnowflakeNode() (*snowflake.Node, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "gridora"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	return snowflake.NewNode(int64(h.Sum32() % 1024))
}
