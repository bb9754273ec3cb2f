package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "holdem_hands.db"

type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	return NewSQLiteService(envOrDefault("LEDGER_SQLITE_PATH", defaultLocalDBName))
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS hands (
    game_id   INTEGER NOT NULL,
    hand_no   INTEGER NOT NULL,
    played_at INTEGER NOT NULL,
    board     TEXT    NOT NULL,
    deltas    TEXT    NOT NULL,
    PRIMARY KEY (game_id, hand_no)
);
CREATE INDEX IF NOT EXISTS idx_hands_game_played ON hands (game_id, played_at DESC);
`)
	return err
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) RecordHand(ctx context.Context, rec HandRecord) error {
	deltas, err := json.Marshal(rec.Deltas)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO hands (game_id, hand_no, played_at, board, deltas)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, hand_no) DO UPDATE SET
    played_at = excluded.played_at,
    board     = excluded.board,
    deltas    = excluded.deltas;
`, rec.GameID, rec.HandNo, rec.PlayedAt.Unix(), rec.Board, string(deltas))
	return err
}

func (s *SQLiteService) RecentHands(ctx context.Context, gameID int64, limit int) ([]HandRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT game_id, hand_no, played_at, board, deltas
FROM hands WHERE game_id = ?
ORDER BY played_at DESC, hand_no DESC
LIMIT ?;
`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHands(rows)
}

func scanHands(rows *sql.Rows) ([]HandRecord, error) {
	out := []HandRecord{}
	for rows.Next() {
		var rec HandRecord
		var playedAt int64
		var deltas string
		if err := rows.Scan(&rec.GameID, &rec.HandNo, &playedAt, &rec.Board, &deltas); err != nil {
			return nil, err
		}
		rec.PlayedAt = time.Unix(playedAt, 0)
		if err := json.Unmarshal([]byte(deltas), &rec.Deltas); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
