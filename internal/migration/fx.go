package migration

import (
	"github.com/erinfolamirukayat/theweddingplace/internal/config"
	contributiondomain "github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	productdomain "github.com/erinfolamirukayat/theweddingplace/internal/product/domain"
	registrydomain "github.com/erinfolamirukayat/theweddingplace/internal/registry/domain"
	"github.com/erinfolamirukayat/theweddingplace/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "sqlite" {
			// embedded deployments don't carry a versioned history
			if err := conn.AutoMigrate(
				&productdomain.Product{},
				&registrydomain.Registry{},
				&registrydomain.RegistryItem{},
				&registrydomain.RegistryPicture{},
				&contributiondomain.Contribution{},
				&contributiondomain.GatewayEvent{},
			); err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		return seed.EnsureStarterCatalog(conn)
	}),
)
