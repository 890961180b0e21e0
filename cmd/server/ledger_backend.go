package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ledgerpolice.dipix.pw/internal/ledger"
)

type ledgerBackend interface {
	Record(a ledger.Action) error
	Search(ctx context.Context, q ledger.Query, page int) (ledger.Results, error)
	Stats() ledger.Stats
	Close() error
}

func openLedger(dataDir string, pageSize int, logger *log.Logger) (ledgerBackend, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LP_LEDGER_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "memory":
		return ledger.NewMemory(pageSize), nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "ledger", "ledger.sqlite")
		st, err := ledger.OpenSQLite(dbPath, ledger.Options{
			PageSize:  pageSize,
			QueueSize: envInt("LP_LEDGER_QUEUE", 65536),
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported LP_LEDGER_BACKEND: %s", backend)
	}
}

// auditFanout writes every action to the audit log and the ledger. A failure
// in one sink does not stop the other.
type auditFanout struct {
	log    *ledger.AuditLog
	ledger ledgerBackend
}

func (f auditFanout) Record(a ledger.Action) error {
	var err1 error
	if f.log != nil {
		err1 = f.log.Record(a)
	}
	if f.ledger != nil {
		if err := f.ledger.Record(a); err != nil && err1 == nil {
			err1 = err
		}
	}
	return err1
}
