package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// Store implements store.RegistryStore on top of GORM. Every public method
// wraps its work in one transaction; helpers below operate on the transaction
// handle they are given and never commit themselves.
type Store struct {
	config *config.Config
	db     *gorm.DB
}

func NewSQLStore(logger *logrus.Logger, cfg *config.Config) (*Store, error) {
	dialector, err := dialectorFor(cfg.StoreURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: NewLoggerAdaptor(logger, LoggerAdaptorConfig{
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %q: %w", cfg.StoreURL, err)
	}

	return &Store{config: cfg, db: db}, nil
}

func dialectorFor(storeURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(storeURL, "postgres://"), strings.HasPrefix(storeURL, "postgresql://"):
		return postgres.Open(storeURL), nil
	case strings.HasPrefix(storeURL, "mysql://"):
		return mysql.Open(strings.TrimPrefix(storeURL, "mysql://")), nil
	case strings.HasPrefix(storeURL, "sqlserver://"):
		return sqlserver.Open(storeURL), nil
	case strings.HasPrefix(storeURL, "sqlite://"):
		return gormlite.Open(strings.TrimPrefix(storeURL, "sqlite://")), nil
	default:
		return nil, fmt.Errorf("unsupported store URL %q", storeURL)
	}
}

// Migrate creates or updates the schema. Intended for the CLI init command
// and tests; production schemas are usually managed externally.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&model.Site{},
		&model.Release{},
		&model.DatasetSource{},
		&model.DatasetType{},
		&model.Dataset{},
		&model.Genome{},
		&model.GenomeDataset{},
		&model.GenomeRelease{},
	)
}

func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) essentialKinds() map[string]struct{} {
	kinds := make(map[string]struct{}, len(s.config.EssentialKinds))
	for _, kind := range s.config.EssentialKinds {
		kinds[kind] = struct{}{}
	}

	return kinds
}

func (s *Store) exemptKinds() map[string]struct{} {
	kinds := make(map[string]struct{}, len(s.config.ReleaseExemptKinds))
	for _, kind := range s.config.ReleaseExemptKinds {
		kinds[kind] = struct{}{}
	}

	return kinds
}
