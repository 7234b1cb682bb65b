package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) SaveNotification(n Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	delivered := 0
	if n.Delivered {
		delivered = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, kind, subject, transport, delivered, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Kind, n.Subject, n.Transport, delivered, nullString(n.Error), formatTime(created),
	)
	return err
}

// ListNotifications returns the most recent notification records first.
func (s *Store) ListNotifications(limit int) ([]Notification, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, subject, transport, delivered, error, created_at
		FROM notifications ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var delivered int
		var errMsg sql.NullString
		var created string
		if err := rows.Scan(&n.ID, &n.Kind, &n.Subject, &n.Transport, &delivered, &errMsg, &created); err != nil {
			return nil, err
		}
		n.Delivered = delivered != 0
		n.Error = errMsg.String
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
