package pg

import (
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// NewPGStores builds every repository over a single pooled connection,
// the composition root's sole entry point into persistence (spec §9
// "global mutable state" — the pool is owned here, handed out by
// value). Grounded on the teacher's store/pg/factory.go shape.
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	Tune(db, cfg.MaxOpenConn, cfg.MaxIdleConn)

	return &store.Stores{
		Threads:     NewPGThreadStore(db),
		Messages:    NewPGMessageStore(db),
		Artifacts:   NewPGArtifactStore(db),
		Jobs:        NewPGJobStore(db),
		Approvals:   NewPGApprovalStore(db),
		TokenLedger: NewPGTokenLedgerStore(db),
		Tasks:       NewPGTaskStore(db),
		Goals:       NewPGGoalStore(db),
		Deployments: NewPGDeploymentStore(db),
		Memory:      NewPGMemoryStore(db),
		DB:          db,
	}, nil
}
