package audit

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

// Open builds the audit store selected by config. The "none" driver returns
// a nil store, which disables auditing.
func Open(config domain.AuditConfig, logger *logrus.Logger) (domain.AuditStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	switch config.Driver {
	case "", domain.AuditDriverNone:
		logger.Info("Audit trail disabled")
		return nil, nil
	case domain.AuditDriverSQLite:
		store, err := NewSQLiteStore(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite audit store: %w", err)
		}
		logger.WithField("path", config.SQLitePath).Info("SQLite audit store ready")
		return store, nil
	case domain.AuditDriverPostgres:
		store, err := NewPostgresStoreFromURL(config.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL audit store: %w", err)
		}
		logger.Info("PostgreSQL audit store ready")
		return NewBreakerStore(store, BreakerConfig{}, logger), nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", config.Driver)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
