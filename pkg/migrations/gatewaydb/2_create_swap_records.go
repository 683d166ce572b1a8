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
		log.Println("creating swap_records table...")
		if err := mghelper.CreateSchema(ctx, db, &store.SwapRecordDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &store.SwapRecordDao{}, "address", "status", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping swap_records table...")
		return mghelper.DropTables(ctx, db, &store.SwapRecordDao{})
	})
}
