package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nexus-agent/orchestrator/internal/observability"
	"github.com/nexus-agent/orchestrator/pkg/models"
)

// PostgresStore implements Store against a Postgres-compatible database
// (Postgres or CockroachDB), matching the conversations/messages schema.
type PostgresStore struct {
	db      *sql.DB
	metrics *observability.Metrics

	stmtCreateConversation *sql.Stmt
	stmtGetConversation    *sql.Stmt
	stmtListConversations  *sql.Stmt
	stmtTouchConversation  *sql.Stmt
	stmtDeleteConversation *sql.Stmt
	stmtInsertMessage      *sql.Stmt
	stmtFinalizeMessage    *sql.Stmt
	stmtDeleteMessage      *sql.Stmt
	stmtListMessages       *sql.Stmt
}

// Config holds connection configuration for PostgresStore.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "nexus_orchestrator",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore opens a connection pool and prepares statements.
func NewPostgresStore(config *Config) (*PostgresStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return NewPostgresStoreFromDSN(dsn, config)
}

// NewPostgresStoreFromDSN opens a connection pool using a raw DSN/URL.
func NewPostgresStoreFromDSN(dsn string, config *Config) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

// Schema is the DDL for the conversations/messages tables. Callers run
// this against a fresh database (or an init container) before serving
// traffic; PostgresStore itself never issues DDL on the hot path.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              BIGSERIAL PRIMARY KEY,
	content         TEXT NOT NULL,
	role            TEXT NOT NULL,
	conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	parts           JSONB,
	model_name      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	finalized_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS messages_conversation_id_created_at_idx
	ON messages (conversation_id, created_at);
`

func (s *PostgresStore) prepareStatements() error {
	var err error

	s.stmtCreateConversation, err = s.db.Prepare(`
		INSERT INTO conversations (title, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare create conversation: %w", err)
	}

	s.stmtGetConversation, err = s.db.Prepare(`
		SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("prepare get conversation: %w", err)
	}

	s.stmtListConversations, err = s.db.Prepare(`
		SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return fmt.Errorf("prepare list conversations: %w", err)
	}

	s.stmtTouchConversation, err = s.db.Prepare(`
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`)
	if err != nil {
		return fmt.Errorf("prepare touch conversation: %w", err)
	}

	s.stmtDeleteConversation, err = s.db.Prepare(`
		DELETE FROM conversations WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("prepare delete conversation: %w", err)
	}

	s.stmtInsertMessage, err = s.db.Prepare(`
		INSERT INTO messages (content, role, conversation_id, parts, model_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare insert message: %w", err)
	}

	s.stmtFinalizeMessage, err = s.db.Prepare(`
		UPDATE messages SET content = $1, parts = $2, model_name = $3, finalized_at = $4
		WHERE id = $5
	`)
	if err != nil {
		return fmt.Errorf("prepare finalize message: %w", err)
	}

	s.stmtDeleteMessage, err = s.db.Prepare(`
		DELETE FROM messages WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("prepare delete message: %w", err)
	}

	s.stmtListMessages, err = s.db.Prepare(`
		SELECT id, content, role, conversation_id, parts, model_name, created_at, finalized_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`)
	if err != nil {
		return fmt.Errorf("prepare list messages: %w", err)
	}

	return nil
}

// SetMetrics attaches a Metrics instance so subsequent queries report their
// latency and outcome. Nil-safe and optional, matching every other
// Metrics-carrying collaborator in this codebase.
func (s *PostgresStore) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// recordQuery reports one query's latency and outcome when metrics are
// attached.
func (s *PostgresStore) recordQuery(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordDatabaseQuery(operation, table, status, time.Since(start).Seconds())
}

// Close closes prepared statements and the underlying connection pool.
func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmtCreateConversation, s.stmtGetConversation, s.stmtListConversations, s.stmtTouchConversation,
		s.stmtDeleteConversation, s.stmtInsertMessage, s.stmtFinalizeMessage,
		s.stmtDeleteMessage, s.stmtListMessages,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	start := time.Now()
	if conv.Title == "" {
		conv.Title = models.DefaultConversationTitle
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	err := s.stmtCreateConversation.QueryRowContext(ctx, conv.Title, now, now).Scan(&conv.ID)
	s.recordQuery("insert", "conversations", start, err)
	return err
}

func (s *PostgresStore) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	start := time.Now()
	conv := &models.Conversation{}
	err := s.stmtGetConversation.QueryRowContext(ctx, id).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		s.recordQuery("select", "conversations", start, nil)
		return nil, ErrNotFound
	}
	if err != nil {
		s.recordQuery("select", "conversations", start, err)
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	s.recordQuery("select", "conversations", start, nil)
	return conv, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	start := time.Now()
	rows, err := s.stmtListConversations.QueryContext(ctx)
	s.recordQuery("select", "conversations", start, err)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := s.stmtTouchConversation.ExecContext(ctx, time.Now().UTC(), id)
	s.recordQuery("update", "conversations", start, err)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := s.stmtDeleteConversation.ExecContext(ctx, id)
	s.recordQuery("delete", "conversations", start, err)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if len(msg.Content) > models.MaxMessageContentChars {
		return fmt.Errorf("message content exceeds %d characters", models.MaxMessageContentChars)
	}
	partsJSON, err := marshalParts(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshal parts: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	start := time.Now()
	err = s.stmtInsertMessage.QueryRowContext(ctx,
		msg.Content, msg.Role, msg.ConversationID, partsJSON, msg.ModelName, msg.CreatedAt,
	).Scan(&msg.ID)
	s.recordQuery("insert", "messages", start, err)
	return err
}

func (s *PostgresStore) FinalizeMessage(ctx context.Context, msg *models.Message) error {
	if len(msg.Content) > models.MaxMessageContentChars {
		return fmt.Errorf("message content exceeds %d characters", models.MaxMessageContentChars)
	}
	partsJSON, err := marshalParts(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshal parts: %w", err)
	}
	if msg.FinalizedAt.IsZero() {
		msg.FinalizedAt = time.Now().UTC()
	}
	start := time.Now()
	res, err := s.stmtFinalizeMessage.ExecContext(ctx, msg.Content, partsJSON, msg.ModelName, msg.FinalizedAt, msg.ID)
	s.recordQuery("update", "messages", start, err)
	if err != nil {
		return fmt.Errorf("finalize message: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id int64) error {
	start := time.Now()
	_, err := s.stmtDeleteMessage.ExecContext(ctx, id)
	s.recordQuery("delete", "messages", start, err)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	start := time.Now()
	rows, err := s.stmtListMessages.QueryContext(ctx, conversationID, limit)
	s.recordQuery("select", "messages", start, err)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var reversed []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var partsJSON []byte
		var finalizedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.Role, &msg.ConversationID, &partsJSON, &msg.ModelName, &msg.CreatedAt, &finalizedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if finalizedAt.Valid {
			msg.FinalizedAt = finalizedAt.Time
		}
		if len(partsJSON) > 0 {
			if err := json.Unmarshal(partsJSON, &msg.Parts); err != nil {
				return nil, fmt.Errorf("unmarshal parts: %w", err)
			}
		}
		reversed = append(reversed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query orders DESC to bound by LIMIT on the most recent rows; flip
	// back to ascending creation order for callers.
	out := make([]*models.Message, len(reversed))
	for i, msg := range reversed {
		out[len(reversed)-1-i] = msg
	}
	return out, nil
}

func marshalParts(parts []models.MessagePart) ([]byte, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	return json.Marshal(parts)
}
