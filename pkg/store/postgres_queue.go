package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fbksd/fbksd-server/pkg/types"
)

func (s *PostgresStore) pushTask(table string, project types.Project, kind types.TaskKind, payload string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM techniques WHERE id = $1`, project.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotRegistered
		}
		if err != nil {
			return fmt.Errorf("store: lookup technique: %w", err)
		}

		var pending int
		err = tx.QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s WHERE technique_id = $1`, table), project.ID).Scan(&pending)
		if err != nil {
			return fmt.Errorf("store: count pending tasks: %w", err)
		}
		if pending > 0 {
			return ErrTaskAlreadyPending
		}

		_, err = tx.Exec(fmt.Sprintf(`
			INSERT INTO %s (technique_id, commit_sha, container_image, kind, payload)
			VALUES ($1, $2, $3, $4, $5)`, table),
			project.ID, project.CommitSHA, project.ContainerImage, string(kind), payload)
		if err != nil {
			return fmt.Errorf("store: insert task: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) PushBuild(project types.Project) error {
	return s.pushTask("tasks_high", project, types.TaskBuild, "")
}

func (s *PostgresStore) PushRun(project types.Project) error {
	return s.pushTask("tasks_normal", project, types.TaskRunBenchmark, "")
}

func (s *PostgresStore) PushPublish(project types.Project, workspaceUUID string) error {
	return s.pushTask("tasks_normal", project, types.TaskPublish, workspaceUUID)
}

func (s *PostgresStore) PopNext() (*types.Task, error) {
	task, err := s.popFrom("tasks_high", types.PriorityHigh)
	if err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}
	return s.popFrom("tasks_normal", types.PriorityNormal)
}

func (s *PostgresStore) popFrom(table string, priority types.TaskPriority) (*types.Task, error) {
	var task *types.Task
	err := s.withTx(func(tx *sql.Tx) error {
		var t types.Task
		err := tx.QueryRow(fmt.Sprintf(`
			SELECT id, technique_id, commit_sha, container_image, kind, payload, created_at
			FROM %s ORDER BY id ASC LIMIT 1 FOR UPDATE`, table)).
			Scan(&t.ID, &t.TechniqueID, &t.CommitSHA, &t.ContainerImage, &t.Kind, &t.Payload, &t.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: select next task: %w", err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), t.ID); err != nil {
			return fmt.Errorf("store: delete popped task: %w", err)
		}
		t.Priority = priority
		task = &t
		return nil
	})
	return task, err
}

func (s *PostgresStore) PushMail(to, subject, text string) error {
	_, err := s.db.Exec(`INSERT INTO mail ("to", subject, text) VALUES ($1, $2, $3)`, to, subject, text)
	if err != nil {
		return fmt.Errorf("store: insert mail: %w", err)
	}
	return nil
}

func (s *PostgresStore) PeekMail() (*types.MessageTask, error) {
	var m types.MessageTask
	err := s.db.QueryRow(`SELECT id, "to", subject, text, created_at FROM mail ORDER BY id ASC LIMIT 1`).
		Scan(&m.ID, &m.To, &m.Subject, &m.Text, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: peek mail: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) PopMail(id int64) error {
	_, err := s.db.Exec(`DELETE FROM mail WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete mail: %w", err)
	}
	return nil
}
