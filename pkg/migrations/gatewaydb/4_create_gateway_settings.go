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
		log.Println("creating gateway_settings table...")
		return mghelper.CreateSchema(ctx, db, &store.SettingDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping gateway_settings table...")
		return mghelper.DropTables(ctx, db, &store.SettingDao{})
	})
}
