package learner

import (
	"database/sql"

	"github.com/triageworks/hound/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "agent performance records and strategy history",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS agent_performance (
						agent           TEXT PRIMARY KEY,
						total           INTEGER NOT NULL DEFAULT 0,
						correct         INTEGER NOT NULL DEFAULT 0,
						feedback        INTEGER NOT NULL DEFAULT 0,
						ema_confidence  REAL    NOT NULL DEFAULT 0,
						weight          REAL    NOT NULL DEFAULT 0,
						updated_at      TEXT    NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS strategies (
						id             TEXT PRIMARY KEY,
						severity       INTEGER NOT NULL,
						confidence     REAL    NOT NULL,
						agreement      REAL    NOT NULL,
						anomaly_count  INTEGER NOT NULL,
						series_mean    REAL    NOT NULL,
						series_stddev  REAL    NOT NULL,
						summary        TEXT    NOT NULL,
						created_at     TEXT    NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_strategies_created ON strategies(created_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
