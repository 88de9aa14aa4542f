package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/envutil"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn := envutil.String("DATABASE_URL", "")
	if dsn == "" {
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := envutil.String("POSTGRES_PASSWORD", "")
		name := envutil.String("POSTGRES_NAME", "edusphere")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	// AGE lives in the same cluster; creation may fail for restricted users
	// and the agedb client loads it per-connection anyway.
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS age;`).Error; err != nil {
		serviceLog.Warn("could not create age extension (continuing)", "error", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	if err := s.db.AutoMigrate(
		&domain.Concept{},
		&domain.ConceptRelation{},
		&domain.KnowledgeDocument{},
	); err != nil {
		return err
	}
	// Expression indexes gorm tags cannot express.
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_concept_tenant_lower_name ON concept (tenant_id, lower(name)) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_kdoc_content_fts ON knowledge_document USING gin (to_tsvector('english', content))`,
		`CREATE INDEX IF NOT EXISTS idx_kdoc_embedding ON knowledge_document USING ivfflat (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Warn("index creation failed (continuing)", "error", err)
		}
	}
	return nil
}
