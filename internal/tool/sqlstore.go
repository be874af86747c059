// internal/tool/sqlstore.go
package tool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore implements Store and TokenStore over database/sql. Placeholders
// use the $n form, which both the pgx stdlib driver and modernc sqlite
// accept.
type SQLStore struct{ DB *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{DB: db} }

const toolTypeColumns = `
	id, name, base_url, tool_domain, lti_version, state,
	consumer_key, shared_secret, secret_hash,
	client_id, public_key, keyset_url, key_type, login_url, deployment_id,
	enabled_capabilities, custom_parameters,
	course_visible, course_id, proxy_id, created_at, updated_at`

func scanToolType(row *sql.Row) (ToolType, error) {
	var t ToolType
	var created, updated int64
	err := row.Scan(
		&t.ID, &t.Name, &t.BaseURL, &t.ToolDomain, &t.LTIVersion, &t.State,
		&t.ConsumerKey, &t.SharedSecret, &t.SecretHash,
		&t.ClientID, &t.PublicKey, &t.KeysetURL, &t.KeyType, &t.LoginURL, &t.DeploymentID,
		&t.EnabledCapabilities, &t.CustomParameters,
		&t.CourseVisible, &t.CourseID, &t.ProxyID, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ToolType{}, ErrNotFound
	}
	if err != nil {
		return ToolType{}, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return t, nil
}

func (s *SQLStore) GetToolType(ctx context.Context, id int64) (ToolType, error) {
	return scanToolType(s.DB.QueryRowContext(ctx,
		`SELECT `+toolTypeColumns+` FROM lti_tool_types WHERE id=$1`, id))
}

func (s *SQLStore) GetToolTypeByClientID(ctx context.Context, clientID string) (ToolType, error) {
	return scanToolType(s.DB.QueryRowContext(ctx,
		`SELECT `+toolTypeColumns+` FROM lti_tool_types WHERE client_id=$1 AND client_id != ''`, clientID))
}

func (s *SQLStore) GetToolTypeByConsumerKey(ctx context.Context, consumerKey string) (ToolType, error) {
	return scanToolType(s.DB.QueryRowContext(ctx,
		`SELECT `+toolTypeColumns+` FROM lti_tool_types
		  WHERE proxy_id=0 AND consumer_key=$1 AND consumer_key != ''`, consumerKey))
}

func (s *SQLStore) ListToolTypes(ctx context.Context, courseID int64) ([]ToolType, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+toolTypeColumns+` FROM lti_tool_types
		  WHERE $1 = 0 OR course_id = 0 OR course_id = $1
		  ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolType
	for rows.Next() {
		var t ToolType
		var created, updated int64
		if err := rows.Scan(
			&t.ID, &t.Name, &t.BaseURL, &t.ToolDomain, &t.LTIVersion, &t.State,
			&t.ConsumerKey, &t.SharedSecret, &t.SecretHash,
			&t.ClientID, &t.PublicKey, &t.KeysetURL, &t.KeyType, &t.LoginURL, &t.DeploymentID,
			&t.EnabledCapabilities, &t.CustomParameters,
			&t.CourseVisible, &t.CourseID, &t.ProxyID, &created, &updated,
		); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		t.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveToolType(ctx context.Context, t *ToolType) error {
	now := time.Now().UTC()
	if t.ID == 0 {
		t.CreatedAt = now
		t.UpdatedAt = now
		return s.DB.QueryRowContext(ctx,
			`INSERT INTO lti_tool_types
			  (name, base_url, tool_domain, lti_version, state,
			   consumer_key, shared_secret, secret_hash,
			   client_id, public_key, keyset_url, key_type, login_url, deployment_id,
			   enabled_capabilities, custom_parameters,
			   course_visible, course_id, proxy_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
			 RETURNING id`,
			t.Name, t.BaseURL, t.ToolDomain, t.LTIVersion, t.State,
			t.ConsumerKey, t.SharedSecret, t.SecretHash,
			t.ClientID, t.PublicKey, t.KeysetURL, t.KeyType, t.LoginURL, t.DeploymentID,
			t.EnabledCapabilities, t.CustomParameters,
			t.CourseVisible, t.CourseID, t.ProxyID, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
		).Scan(&t.ID)
	}

	t.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		`UPDATE lti_tool_types SET
		   name=$2, base_url=$3, tool_domain=$4, lti_version=$5, state=$6,
		   consumer_key=$7, shared_secret=$8, secret_hash=$9,
		   client_id=$10, public_key=$11, keyset_url=$12, key_type=$13,
		   login_url=$14, deployment_id=$15,
		   enabled_capabilities=$16, custom_parameters=$17,
		   course_visible=$18, course_id=$19, proxy_id=$20, updated_at=$21
		 WHERE id=$1`,
		t.ID, t.Name, t.BaseURL, t.ToolDomain, t.LTIVersion, t.State,
		t.ConsumerKey, t.SharedSecret, t.SecretHash,
		t.ClientID, t.PublicKey, t.KeysetURL, t.KeyType, t.LoginURL, t.DeploymentID,
		t.EnabledCapabilities, t.CustomParameters,
		t.CourseVisible, t.CourseID, t.ProxyID, t.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) DeleteToolType(ctx context.Context, id int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var proxyID int64
	err = tx.QueryRowContext(ctx, `SELECT proxy_id FROM lti_tool_types WHERE id=$1`, id).Scan(&proxyID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lti_access_tokens WHERE tool_type_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lti_tool_types WHERE id=$1`, id); err != nil {
		return err
	}

	if proxyID != 0 {
		var remaining int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM lti_tool_types WHERE proxy_id=$1`, proxyID).Scan(&remaining); err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM lti_tool_proxies WHERE id=$1`, proxyID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetProxy(ctx context.Context, id int64) (ToolProxy, error) {
	return s.scanProxy(ctx, `SELECT id, name, registration_url, state, guid, secret,
		capabilities, services, created_at FROM lti_tool_proxies WHERE id=$1`, id)
}

func (s *SQLStore) GetProxyByGUID(ctx context.Context, guid string) (ToolProxy, error) {
	return s.scanProxy(ctx, `SELECT id, name, registration_url, state, guid, secret,
		capabilities, services, created_at FROM lti_tool_proxies WHERE guid=$1`, guid)
}

func (s *SQLStore) scanProxy(ctx context.Context, query string, arg any) (ToolProxy, error) {
	var p ToolProxy
	var created int64
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Name, &p.RegistrationURL, &p.State, &p.GUID, &p.Secret,
		&p.Capabilities, &p.Services, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ToolProxy{}, ErrNotFound
	}
	if err != nil {
		return ToolProxy{}, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

func (s *SQLStore) SaveProxy(ctx context.Context, p *ToolProxy) error {
	if p.ID == 0 {
		p.CreatedAt = time.Now().UTC()
		return s.DB.QueryRowContext(ctx,
			`INSERT INTO lti_tool_proxies (name, registration_url, state, guid, secret, capabilities, services, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			p.Name, p.RegistrationURL, p.State, p.GUID, p.Secret, p.Capabilities, p.Services, p.CreatedAt.Unix(),
		).Scan(&p.ID)
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE lti_tool_proxies SET name=$2, registration_url=$3, state=$4, guid=$5, secret=$6,
		   capabilities=$7, services=$8 WHERE id=$1`,
		p.ID, p.Name, p.RegistrationURL, p.State, p.GUID, p.Secret, p.Capabilities, p.Services)
	return err
}

func (s *SQLStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lti_access_tokens WHERE token=$1`, token).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) SaveToken(ctx context.Context, t *AccessToken) error {
	scope, err := json.Marshal(t.Scope)
	if err != nil {
		return err
	}
	return s.DB.QueryRowContext(ctx,
		`INSERT INTO lti_access_tokens (tool_type_id, token, scope, created_at, valid_until)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.ToolTypeID, t.Token, string(scope), t.CreatedAt.Unix(), t.ValidUntil.Unix(),
	).Scan(&t.ID)
}

func (s *SQLStore) FindToken(ctx context.Context, token string, toolTypeID int64) (AccessToken, error) {
	var t AccessToken
	var scope string
	var created, valid int64
	var lastAccess sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, tool_type_id, token, scope, created_at, valid_until, last_access
		   FROM lti_access_tokens
		  WHERE token=$1 AND ($2 = 0 OR tool_type_id = $2)`,
		token, toolTypeID).
		Scan(&t.ID, &t.ToolTypeID, &t.Token, &scope, &created, &valid, &lastAccess)
	if errors.Is(err, sql.ErrNoRows) {
		return AccessToken{}, ErrNotFound
	}
	if err != nil {
		return AccessToken{}, err
	}
	if err := json.Unmarshal([]byte(scope), &t.Scope); err != nil {
		return AccessToken{}, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.ValidUntil = time.Unix(valid, 0).UTC()
	if lastAccess.Valid {
		at := time.Unix(lastAccess.Int64, 0).UTC()
		t.LastAccess = &at
	}
	return t, nil
}

func (s *SQLStore) TouchToken(ctx context.Context, id int64, at time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE lti_access_tokens SET last_access=$2 WHERE id=$1`, id, at.Unix())
	return err
}
