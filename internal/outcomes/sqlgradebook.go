// internal/outcomes/sqlgradebook.go
package outcomes

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLGradebook stores normalized scores in the lti_results table.
type SQLGradebook struct{ DB *sql.DB }

func NewSQLGradebook(db *sql.DB) *SQLGradebook { return &SQLGradebook{DB: db} }

func (g *SQLGradebook) ReplaceResult(ctx context.Context, sourcedID string, score float64) error {
	_, err := g.DB.ExecContext(ctx,
		`INSERT INTO lti_results (sourcedid, score, updated_at) VALUES ($1,$2,$3)
		 ON CONFLICT (sourcedid) DO UPDATE SET score=$2, updated_at=$3`,
		sourcedID, score, time.Now().Unix())
	return err
}

func (g *SQLGradebook) ReadResult(ctx context.Context, sourcedID string) (float64, bool, error) {
	var score float64
	err := g.DB.QueryRowContext(ctx,
		`SELECT score FROM lti_results WHERE sourcedid=$1`, sourcedID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (g *SQLGradebook) DeleteResult(ctx context.Context, sourcedID string) error {
	_, err := g.DB.ExecContext(ctx,
		`DELETE FROM lti_results WHERE sourcedid=$1`, sourcedID)
	return err
}
