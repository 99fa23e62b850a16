package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("empty catalog path")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS conversations (
  id            INTEGER PRIMARY KEY,
  conv_key      TEXT NOT NULL UNIQUE,
  action        TEXT NOT NULL,
  is_group      INTEGER NOT NULL CHECK (is_group IN (0,1)),
  first_at      TEXT NOT NULL,
  last_at       TEXT NOT NULL,
  path          TEXT NOT NULL,
  file_size     INTEGER NOT NULL DEFAULT 0,
  media_count   INTEGER NOT NULL DEFAULT 0,
  media_size    INTEGER NOT NULL DEFAULT 0,
  merged_count  INTEGER NOT NULL DEFAULT 0,
  run_id        INTEGER NOT NULL DEFAULT 0,
  updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_conversations_action ON conversations(action);
CREATE TABLE IF NOT EXISTS participants (
  id              INTEGER PRIMARY KEY,
  conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
  phone_number    TEXT NOT NULL,
  name            TEXT,
  matched_number  TEXT,
  match_length    INTEGER NOT NULL DEFAULT 0,
  UNIQUE(conversation_id, phone_number)
);
CREATE INDEX IF NOT EXISTS idx_participants_number ON participants(phone_number);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertConversations stores the conversations of one run in a single
// transaction and reports which ones were new and which replaced an existing row.
func (d *DB) UpsertConversations(ctx context.Context, conversations []Conversation) (changes []Change, err error) {
	now := time.Now().UTC()
	runID := now.UnixNano()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, "SELECT id, conv_key FROM conversations")
	if err != nil {
		return nil, err
	}
	existing := make(map[string]int64)
	for rows.Next() {
		var (
			id  int64
			key string
		)
		if err = rows.Scan(&id, &key); err != nil {
			rows.Close()
			return nil, err
		}
		existing[key] = id
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	for _, c := range conversations {
		if c.Key == "" {
			err = errors.New("conversation without a key")
			return nil, err
		}

		id, existed := existing[c.Key]
		if !existed {
			var res sql.Result
			res, err = tx.ExecContext(ctx, `INSERT INTO conversations(conv_key, action, is_group, first_at, last_at, path, file_size, media_count, media_size, merged_count, run_id) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
				c.Key, c.Action, boolToInt(c.Group), formatTime(c.FirstAt), formatTime(c.LastAt), c.Path, c.FileSize, c.MediaCount, c.MediaSize, c.MergedCount, runID)
			if err != nil {
				return nil, err
			}
			if id, err = res.LastInsertId(); err != nil {
				return nil, err
			}
			existing[c.Key] = id
			changes = append(changes, Change{OccurredAt: now, Key: c.Key, ChangeType: ChangeAdded})
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE conversations SET action = ?, is_group = ?, first_at = ?, last_at = ?, path = ?, file_size = ?, media_count = ?, media_size = ?, merged_count = ?, run_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				c.Action, boolToInt(c.Group), formatTime(c.FirstAt), formatTime(c.LastAt), c.Path, c.FileSize, c.MediaCount, c.MediaSize, c.MergedCount, runID, id)
			if err != nil {
				return nil, err
			}
			if _, err = tx.ExecContext(ctx, `DELETE FROM participants WHERE conversation_id = ?`, id); err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, Key: c.Key, ChangeType: ChangeUpdated})
		}

		for _, p := range c.Participants {
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO participants(conversation_id, phone_number, name, matched_number, match_length) VALUES(?,?,?,?,?)`,
				id, p.PhoneNumber, nullIfEmpty(p.Name), nullIfEmpty(p.MatchedNumber), p.MatchLength)
			if err != nil {
				return nil, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// ListOptions controls selection when listing conversations.
type ListOptions struct {
	Action      string
	PhoneNumber string
	Since       time.Time
}

// ListConversations returns the stored conversations matching filters,
// ordered by key, with their participants.
func (d *DB) ListConversations(ctx context.Context, opts ListOptions) ([]Conversation, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Action != "" {
		where += " AND action = ?"
		args = append(args, opts.Action)
	}
	if opts.PhoneNumber != "" {
		where += " AND id IN (SELECT conversation_id FROM participants WHERE phone_number LIKE ?)"
		args = append(args, fmt.Sprintf("%%%s%%", opts.PhoneNumber))
	}
	if !opts.Since.IsZero() {
		where += " AND last_at >= ?"
		args = append(args, formatTime(opts.Since))
	}

	q := "SELECT id, conv_key, action, is_group, first_at, last_at, path, file_size, media_count, media_size, merged_count FROM conversations " + where + " ORDER BY conv_key"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	index := make(map[int64]int)
	for rows.Next() {
		var (
			c           Conversation
			id          int64
			group       int
			first, last string
		)
		if err := rows.Scan(&id, &c.Key, &c.Action, &group, &first, &last, &c.Path, &c.FileSize, &c.MediaCount, &c.MediaSize, &c.MergedCount); err != nil {
			return nil, err
		}
		c.Group = group == 1
		c.FirstAt = parseTime(first)
		c.LastAt = parseTime(last)
		index[id] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	prows, err := d.sql.QueryContext(ctx, "SELECT conversation_id, phone_number, name, matched_number, match_length FROM participants ORDER BY conversation_id, phone_number")
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var (
			id            int64
			p             Participant
			name, matched sql.NullString
		)
		if err := prows.Scan(&id, &p.PhoneNumber, &name, &matched, &p.MatchLength); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		p.Name = name.String
		p.MatchedNumber = matched.String
		out[i].Participants = append(out[i].Participants, p)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

type ActionStats struct {
	Action        string
	Conversations int
	Participants  int
	MediaCount    int
	Bytes         int64
}

// GetStats aggregates the catalog per conversation action.
func (d *DB) GetStats(ctx context.Context) ([]ActionStats, error) {
	query := `
		SELECT
			c.action,
			COUNT(DISTINCT c.id),
			(SELECT COUNT(DISTINCT p.phone_number) FROM participants p JOIN conversations c2 ON c2.id = p.conversation_id WHERE c2.action = c.action),
			SUM(c.media_count),
			SUM(c.file_size + c.media_size)
		FROM
			conversations c
		GROUP BY
			c.action
		ORDER BY
			c.action;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ActionStats
	for rows.Next() {
		var s ActionStats
		if err := rows.Scan(&s.Action, &s.Conversations, &s.Participants, &s.MediaCount, &s.Bytes); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
