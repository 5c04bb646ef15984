package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fbksd/fbksd-server/pkg/types"
)

func (s *PostgresStore) Register(project types.Project, info types.Info) error {
	return s.withTx(func(tx *sql.Tx) error {
		var existingKind, existingShortName string
		err := tx.QueryRow(`SELECT kind, short_name FROM techniques WHERE id = $1`, project.ID).
			Scan(&existingKind, &existingShortName)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			// New technique: short_name must not belong to a different id.
			var otherID int
			err := tx.QueryRow(`SELECT id FROM techniques WHERE short_name = $1`, info.ShortName).Scan(&otherID)
			if err == nil {
				return ErrNameAlreadyExists
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("store: lookup short_name: %w", err)
			}
			versionsJSON, mErr := json.Marshal(info.Versions)
			if mErr != nil {
				return fmt.Errorf("store: marshal versions: %w", mErr)
			}
			_, err = tx.Exec(`
				INSERT INTO techniques (id, kind, short_name, full_name, citation, comment, owner_email, versions, num_workspaces)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`,
				project.ID, string(info.Kind), info.ShortName, info.FullName, info.Citation, info.Comment, project.UserEmail, versionsJSON)
			if err != nil {
				return fmt.Errorf("store: insert technique: %w", err)
			}
			return nil

		case err != nil:
			return fmt.Errorf("store: lookup technique: %w", err)

		default:
			// Existing technique: kind is immutable, mutable fields update.
			if existingKind != string(info.Kind) {
				return fmt.Errorf("%w: kind cannot change after first registration", ErrUnspecified)
			}
			if existingShortName != info.ShortName {
				var otherID int
				err := tx.QueryRow(`SELECT id FROM techniques WHERE short_name = $1 AND id != $2`, info.ShortName, project.ID).Scan(&otherID)
				if err == nil {
					return ErrNameAlreadyExists
				}
				if !errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("store: lookup short_name: %w", err)
				}
			}
			versionsJSON, mErr := json.Marshal(info.Versions)
			if mErr != nil {
				return fmt.Errorf("store: marshal versions: %w", mErr)
			}
			_, err = tx.Exec(`
				UPDATE techniques
				SET short_name = $1, full_name = $2, citation = $3, comment = $4, owner_email = $5, versions = $6, updated_at = now()
				WHERE id = $7`,
				info.ShortName, info.FullName, info.Citation, info.Comment, project.UserEmail, versionsJSON, project.ID)
			if err != nil {
				return fmt.Errorf("store: update technique: %w", err)
			}
			return nil
		}
	})
}

func (s *PostgresStore) GetTechnique(id int) (*types.Technique, error) {
	var t types.Technique
	var versionsJSON []byte
	err := s.db.QueryRow(`
		SELECT id, kind, short_name, full_name, citation, comment, owner_email, versions, num_workspaces, created_at, updated_at
		FROM techniques WHERE id = $1`, id).
		Scan(&t.ID, &t.Kind, &t.ShortName, &t.FullName, &t.Citation, &t.Comment, &t.OwnerEmail, &versionsJSON, &t.NumWorkspaces, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("store: get technique: %w", err)
	}
	if err := json.Unmarshal(versionsJSON, &t.Versions); err != nil {
		return nil, fmt.Errorf("store: unmarshal versions: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) TechniqueKind(id int) (types.TechniqueKind, error) {
	t, err := s.GetTechnique(id)
	if err != nil {
		return "", err
	}
	return t.Kind, nil
}

func (s *PostgresStore) AddWorkspace(techniqueID int, commitSHA, containerImage string, maxWS int) (string, error) {
	var newUUID string
	err := s.withTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT 1 FROM techniques WHERE id = $1`, techniqueID).Scan(&count); errors.Is(err, sql.ErrNoRows) {
			return ErrNotRegistered
		} else if err != nil {
			return fmt.Errorf("store: lookup technique: %w", err)
		}

		err := tx.QueryRow(`
			SELECT count(*) FROM workspaces WHERE technique_id = $1 AND status != 'Published'`, techniqueID).
			Scan(&count)
		if err != nil {
			return fmt.Errorf("store: count workspaces: %w", err)
		}
		if count >= maxWS {
			return ErrMaxWorkspacesExceeded
		}

		newUUID = uuid.New().String()
		_, err = tx.Exec(`
			INSERT INTO workspaces (uuid, technique_id, commit_sha, container_image, status)
			VALUES ($1, $2, $3, $4, 'New')`, newUUID, techniqueID, commitSHA, containerImage)
		if err != nil {
			return fmt.Errorf("store: insert workspace: %w", err)
		}
		_, err = tx.Exec(`UPDATE techniques SET num_workspaces = num_workspaces + 1 WHERE id = $1`, techniqueID)
		if err != nil {
			return fmt.Errorf("store: increment num_workspaces: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return newUUID, nil
}

func (s *PostgresStore) GetWorkspace(uuid string) (*types.Workspace, error) {
	var w types.Workspace
	err := s.db.QueryRow(`
		SELECT uuid, technique_id, commit_sha, container_image, status, created_at, finished_at, published_at
		FROM workspaces WHERE uuid = $1`, uuid).
		Scan(&w.UUID, &w.TechniqueID, &w.CommitSHA, &w.ContainerImage, &w.Status, &w.CreatedAt, &w.FinishedAt, &w.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get workspace: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) PublishWorkspacePrivate(workspaceUUID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var techniqueID int
		var status string
		err := tx.QueryRow(`SELECT technique_id, status FROM workspaces WHERE uuid = $1`, workspaceUUID).Scan(&techniqueID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotRegistered
		}
		if err != nil {
			return fmt.Errorf("store: lookup workspace: %w", err)
		}
		if status != string(types.WorkspaceNew) {
			return nil // idempotent: already Finished or Published
		}
		_, err = tx.Exec(`UPDATE workspaces SET status = 'Finished', finished_at = now() WHERE uuid = $1`, workspaceUUID)
		if err != nil {
			return fmt.Errorf("store: finish workspace: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) PublishWorkspacePublic(workspaceUUID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var techniqueID int
		var status string
		err := tx.QueryRow(`SELECT technique_id, status FROM workspaces WHERE uuid = $1`, workspaceUUID).Scan(&techniqueID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotRegistered
		}
		if err != nil {
			return fmt.Errorf("store: lookup workspace: %w", err)
		}
		switch status {
		case string(types.WorkspacePublished):
			return ErrAlreadyPublished
		case string(types.WorkspaceNew):
			return ErrWorkspaceNotFinished
		}

		// Demote any previously Published workspace of this technique
		// back to Finished, inside the same transaction, to preserve
		// the single-Published invariant atomically.
		_, err = tx.Exec(`
			UPDATE workspaces SET status = 'Finished', published_at = NULL
			WHERE technique_id = $1 AND status = 'Published'`, techniqueID)
		if err != nil {
			return fmt.Errorf("store: demote prior published workspace: %w", err)
		}

		_, err = tx.Exec(`UPDATE workspaces SET status = 'Published', published_at = now() WHERE uuid = $1`, workspaceUUID)
		if err != nil {
			return fmt.Errorf("store: publish workspace: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) UnpublishWorkspace(techniqueID int) (types.TechniqueKind, string, error) {
	var kind types.TechniqueKind
	var workspaceUUID string
	err := s.withTx(func(tx *sql.Tx) error {
		err := tx.QueryRow(`SELECT kind FROM techniques WHERE id = $1`, techniqueID).Scan(&kind)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotRegistered
		}
		if err != nil {
			return fmt.Errorf("store: lookup technique: %w", err)
		}
		err = tx.QueryRow(`SELECT uuid FROM workspaces WHERE technique_id = $1 AND status = 'Published'`, techniqueID).Scan(&workspaceUUID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWorkspaceNotFound
		}
		if err != nil {
			return fmt.Errorf("store: lookup published workspace: %w", err)
		}
		_, err = tx.Exec(`UPDATE workspaces SET status = 'Finished', published_at = NULL WHERE uuid = $1`, workspaceUUID)
		if err != nil {
			return fmt.Errorf("store: unpublish: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return kind, workspaceUUID, nil
}

func (s *PostgresStore) RemoveWorkspace(techniqueID int, workspaceUUID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM workspaces WHERE uuid = $1 AND technique_id = $2`, workspaceUUID, techniqueID)
		if err != nil {
			return fmt.Errorf("store: delete workspace: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: rows affected: %w", err)
		}
		if n == 0 {
			return ErrWorkspaceNotFound
		}
		_, err = tx.Exec(`UPDATE techniques SET num_workspaces = num_workspaces - 1 WHERE id = $1`, techniqueID)
		if err != nil {
			return fmt.Errorf("store: decrement num_workspaces: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetPublished(kind types.TechniqueKind) ([]PublishedEntry, error) {
	rows, err := s.db.Query(`
		SELECT w.technique_id, w.uuid FROM workspaces w
		JOIN techniques t ON t.id = w.technique_id
		WHERE w.status = 'Published' AND t.kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("store: query published: %w", err)
	}
	defer rows.Close()
	var out []PublishedEntry
	for rows.Next() {
		var e PublishedEntry
		if err := rows.Scan(&e.TechniqueID, &e.UUID); err != nil {
			return nil, fmt.Errorf("store: scan published: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTechniqueIDs() ([]int, error) {
	rows, err := s.db.Query(`SELECT id FROM techniques ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query technique ids: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan technique id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUnpublished(techniqueID int) ([]string, error) {
	rows, err := s.db.Query(`SELECT uuid FROM workspaces WHERE technique_id = $1 AND status != 'Published' ORDER BY created_at DESC`, techniqueID)
	if err != nil {
		return nil, fmt.Errorf("store: query unpublished: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("store: scan unpublished: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUnpublishedOlderThan(kind types.TechniqueKind, days int) ([]PublishedEntry, error) {
	rows, err := s.db.Query(`
		SELECT w.technique_id, w.uuid FROM workspaces w
		JOIN techniques t ON t.id = w.technique_id
		WHERE w.status = 'Finished' AND t.kind = $1
		  AND w.finished_at < now() - ($2 || ' days')::interval`, string(kind), days)
	if err != nil {
		return nil, fmt.Errorf("store: query stale unpublished: %w", err)
	}
	defer rows.Close()
	var out []PublishedEntry
	for rows.Next() {
		var e PublishedEntry
		if err := rows.Scan(&e.TechniqueID, &e.UUID); err != nil {
			return nil, fmt.Errorf("store: scan stale unpublished: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
