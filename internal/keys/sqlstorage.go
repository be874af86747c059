// internal/keys/sqlstorage.go
package keys

import (
	"context"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// SQLStorage persists signing keys in the lti_signing_keys table so a
// restart does not invalidate published JWKS entries.
type SQLStorage struct{ DB *sql.DB }

func NewSQLStorage(db *sql.DB) *SQLStorage { return &SQLStorage{DB: db} }

func (s *SQLStorage) List(ctx context.Context) ([]KeyRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT kid, private_pem, created_at, not_before, not_after FROM lti_signing_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyRecord
	for rows.Next() {
		var rec KeyRecord
		var pemText string
		var created, nbf, naf int64
		if err := rows.Scan(&rec.KID, &pemText, &created, &nbf, &naf); err != nil {
			return nil, err
		}
		block, _ := pem.Decode([]byte(pemText))
		if block == nil {
			return nil, fmt.Errorf("keys: key %s: no PEM block", rec.KID)
		}
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keys: key %s: %w", rec.KID, err)
		}
		rec.Private = priv
		rec.CreatedAt = time.Unix(created, 0).UTC()
		rec.NotBefore = time.Unix(nbf, 0).UTC()
		rec.NotAfter = time.Unix(naf, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStorage) Save(ctx context.Context, rec KeyRecord) error {
	if rec.KID == "" || rec.Private == nil {
		return errors.New("keys: incomplete record")
	}
	pemText := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(rec.Private),
	})
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO lti_signing_keys (kid, private_pem, created_at, not_before, not_after)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (kid) DO NOTHING`,
		rec.KID, string(pemText), rec.CreatedAt.Unix(), rec.NotBefore.Unix(), rec.NotAfter.Unix())
	return err
}
