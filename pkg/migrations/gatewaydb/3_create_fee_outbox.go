package gatewaydb

import (
	"context"
	"log"

	mghelper "github.com/nexchain-labs/asset-gateway/pkg/pgutil/migrations"
	"github.com/nexchain-labs/asset-gateway/pkg/store"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating fee_outbox table...")
		if err := mghelper.CreateSchema(ctx, db, &store.FeeOutboxDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &store.FeeOutboxDao{}, "status", "next_attempt_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping fee_outbox table...")
		return mghelper.DropTables(ctx, db, &store.FeeOutboxDao{})
	})
}
