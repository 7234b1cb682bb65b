package storage

import (
	"fmt"
	"time"
)

// MarkImageSeen records that an image completed publish and archive. Marking
// an already seen image keeps the first record.
func (s *Store) MarkImageSeen(img SeenImage) error {
	completed := img.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO seen_images (id, name, remote_url, completed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		img.ID, img.Name, img.RemoteURL, formatTime(completed),
	)
	return err
}

// IsImageSeen reports whether id has been recorded.
func (s *Store) IsImageSeen(id string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM seen_images WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SeenImageIDs returns every recorded image id.
func (s *Store) SeenImageIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM seen_images ORDER BY completed_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSeenImages returns the most recently completed images first.
func (s *Store) ListSeenImages(limit int) ([]SeenImage, error) {
	rows, err := s.db.Query(`
		SELECT id, name, remote_url, completed_at FROM seen_images
		ORDER BY completed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeenImage
	for rows.Next() {
		var img SeenImage
		var completed string
		if err := rows.Scan(&img.ID, &img.Name, &img.RemoteURL, &completed); err != nil {
			return nil, err
		}
		if img.CompletedAt, err = parseTime(completed); err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
