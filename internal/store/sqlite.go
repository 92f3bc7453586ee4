package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"classim/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		school_type TEXT NOT NULL,
		grade INTEGER NOT NULL,
		subject TEXT NOT NULL,
		topic_name TEXT NOT NULL,
		lesson_goal TEXT NOT NULL,
		curriculum_json TEXT NOT NULL,
		teacher_json TEXT NOT NULL,
		students_json TEXT NOT NULL,
		goal_explanation TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS utterances (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		utterance_id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		speaker_id TEXT NOT NULL,
		speaker_type TEXT NOT NULL,
		speaker_name TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp_minutes REAL NOT NULL,
		phase TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession persists a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	curriculumJSON, err := json.Marshal(session.Curriculum)
	if err != nil {
		return fmt.Errorf("marshal curriculum: %w", err)
	}
	teacherJSON, err := json.Marshal(session.Teacher)
	if err != nil {
		return fmt.Errorf("marshal teacher: %w", err)
	}
	studentsJSON, err := json.Marshal(session.Students)
	if err != nil {
		return fmt.Errorf("marshal students: %w", err)
	}

	query := `
	INSERT INTO sessions (
		session_id, school_type, grade, subject, topic_name, lesson_goal,
		curriculum_json, teacher_json, students_json, goal_explanation, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, string(session.SchoolType), session.Grade, string(session.Subject),
		session.TopicName, session.LessonGoal,
		string(curriculumJSON), string(teacherJSON), string(studentsJSON),
		session.GoalExplanation, session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, school_type, grade, subject, topic_name, lesson_goal,
		       curriculum_json, teacher_json, students_json, goal_explanation, created_at
		FROM sessions WHERE session_id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// ListSessions retrieves all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	query := `
		SELECT session_id, school_type, grade, subject, topic_name, lesson_goal,
		       curriculum_json, teacher_json, students_json, goal_explanation, created_at
		FROM sessions ORDER BY created_at DESC, session_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var schoolType, subject string
	var curriculumJSON, teacherJSON, studentsJSON string
	var goalExplanation sql.NullString
	var createdAt int64

	err := row.Scan(
		&session.ID, &schoolType, &session.Grade, &subject,
		&session.TopicName, &session.LessonGoal,
		&curriculumJSON, &teacherJSON, &studentsJSON,
		&goalExplanation, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	session.SchoolType = domain.SchoolType(schoolType)
	session.Subject = domain.Subject(subject)
	session.GoalExplanation = goalExplanation.String
	session.CreatedAt = time.Unix(createdAt, 0)

	if err := json.Unmarshal([]byte(curriculumJSON), &session.Curriculum); err != nil {
		return nil, fmt.Errorf("unmarshal curriculum: %w", err)
	}
	if err := json.Unmarshal([]byte(teacherJSON), &session.Teacher); err != nil {
		return nil, fmt.Errorf("unmarshal teacher: %w", err)
	}
	if err := json.Unmarshal([]byte(studentsJSON), &session.Students); err != nil {
		return nil, fmt.Errorf("unmarshal students: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session and its utterances.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("DeleteSession affected 0 rows", "session_id", sessionID)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM utterances WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session utterances: %w", err)
	}
	return nil
}

// SaveUtterance appends one utterance to a session's transcript.
func (s *SQLiteStore) SaveUtterance(ctx context.Context, utterance *domain.Utterance) error {
	query := `
	INSERT INTO utterances (
		utterance_id, session_id, speaker_id, speaker_type,
		speaker_name, content, timestamp_minutes, phase
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		utterance.ID, utterance.SessionID, utterance.SpeakerID,
		string(utterance.SpeakerType), utterance.SpeakerName,
		utterance.Content, utterance.Timestamp, string(utterance.Phase),
	)
	if err != nil {
		return fmt.Errorf("insert utterance: %w", err)
	}
	return nil
}

// ListUtterances retrieves a session's transcript in emission order.
func (s *SQLiteStore) ListUtterances(ctx context.Context, sessionID string) ([]*domain.Utterance, error) {
	query := `
		SELECT utterance_id, session_id, speaker_id, speaker_type,
		       speaker_name, content, timestamp_minutes, phase
		FROM utterances WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query utterances: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close utterance rows", "error", closeErr)
		}
	}()

	var utterances []*domain.Utterance
	for rows.Next() {
		var u domain.Utterance
		var speakerType, phase string

		if err := rows.Scan(
			&u.ID, &u.SessionID, &u.SpeakerID, &speakerType,
			&u.SpeakerName, &u.Content, &u.Timestamp, &phase,
		); err != nil {
			return nil, fmt.Errorf("scan utterance row: %w", err)
		}

		u.SpeakerType = domain.SpeakerType(speakerType)
		u.Phase = domain.Phase(phase)
		utterances = append(utterances, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate utterances: %w", err)
	}
	return utterances, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
