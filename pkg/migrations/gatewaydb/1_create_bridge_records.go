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
		log.Println("creating bridge_records table...")
		if err := mghelper.CreateSchema(ctx, db, &store.BridgeRecordDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &store.BridgeRecordDao{}, "status", "created_at"); err != nil {
			return err
		}
		// Partial unique index: one inbound record per source transaction hash.
		// Outbound records reference the same hash namespace but are exempt.
		return mghelper.CreatePartialUniqueIndex(ctx, db,
			"bridge_records",
			"idx_bridge_records_source_tx_hash_in",
			"source_tx_hash",
			"direction = 'in'",
		)
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping bridge_records table...")
		if err := mghelper.DropIndex(ctx, db, "idx_bridge_records_source_tx_hash_in"); err != nil {
			return err
		}
		return mghelper.DropTables(ctx, db, &store.BridgeRecordDao{})
	})
}
