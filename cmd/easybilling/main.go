package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/audit"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/config"
	"github.com/easybilling/easybilling/internal/creditnote"
	"github.com/easybilling/easybilling/internal/customer"
	"github.com/easybilling/easybilling/internal/gst"
	"github.com/easybilling/easybilling/internal/inventory"
	"github.com/easybilling/easybilling/internal/invoice"
	"github.com/easybilling/easybilling/internal/migration"
	"github.com/easybilling/easybilling/internal/offer"
	"github.com/easybilling/easybilling/internal/outbox"
	"github.com/easybilling/easybilling/internal/product"
	"github.com/easybilling/easybilling/internal/quote"
	"github.com/easybilling/easybilling/internal/recurring"
	"github.com/easybilling/easybilling/internal/scheduler"
	"github.com/easybilling/easybilling/internal/securitygroup"
	"github.com/easybilling/easybilling/internal/server"
	"github.com/easybilling/easybilling/internal/supplier"
	"github.com/easybilling/easybilling/internal/tenant"
	"github.com/easybilling/easybilling/pkg/db"
	"github.com/easybilling/easybilling/pkg/log"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(NewRedisClient),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		tenant.Module,
		customer.Module,
		supplier.Module,
		product.Module,
		gst.Module,
		offer.Module,
		inventory.Module,
		outbox.Module,
		invoice.Module,
		quote.Module,
		recurring.Module,
		creditnote.Module,
		securitygroup.Module,
		audit.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake constructs the node used for all entity IDs.
func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// NewRedisClient builds the shared client used for invoice hold storage.
func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
