package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Attempt é uma tentativa de resolução registrada pelo worker.
type Attempt struct {
	JobID     string
	Kind      string
	Outcome   string
	ErrorKind string
	Latency   time.Duration
	Score     float64
	Cached    bool
}

// Stat agrega as tentativas por tipo e resultado.
type Stat struct {
	Kind       string
	Outcome    string
	Count      int64
	AvgLatency time.Duration
}

// AttemptRepository grava as tentativas no Postgres. Usa pool porque o worker
// responde vários jobs em paralelo.
type AttemptRepository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewAttemptRepository(ctx context.Context, databaseURL string, logger *zap.Logger) (*AttemptRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("banco não responde: %w", err)
	}

	repo := &AttemptRepository{db: pool, log: logger.Named("audit")}
	if err := repo.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "001_attempts",
		query: `CREATE TABLE IF NOT EXISTS captcha_attempts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_id VARCHAR(64),
			kind VARCHAR(20) NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			error_kind VARCHAR(32),
			latency_ms INT NOT NULL DEFAULT 0,
			score DOUBLE PRECISION,
			created_at TIMESTAMP DEFAULT NOW()
		);`,
	},
	{
		name:  "002_kind_index",
		query: "CREATE INDEX IF NOT EXISTS idx_attempts_kind ON captcha_attempts(kind, outcome);",
	},
	{
		name:  "003_cached",
		query: "ALTER TABLE captcha_attempts ADD COLUMN IF NOT EXISTS cached BOOLEAN DEFAULT FALSE;",
	},
}

func (r *AttemptRepository) runMigrations(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := r.db.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("erro na migration [%s]: %w", m.name, err)
		}
	}
	r.log.Info("Schema do banco verificado/criado com sucesso.")
	return nil
}

// Record insere a tentativa e devolve o id gerado.
func (r *AttemptRepository) Record(ctx context.Context, a Attempt) (string, error) {
	query := `
		INSERT INTO captcha_attempts
		(job_id, kind, outcome, error_kind, latency_ms, score, cached, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`
	var id string
	err := r.db.QueryRow(ctx, query, recordArgs(a)...).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("erro gravando tentativa: %w", err)
	}
	return id, nil
}

func recordArgs(a Attempt) []any {
	var errorKind *string
	if a.ErrorKind != "" {
		errorKind = &a.ErrorKind
	}
	var score *float64
	if a.Score > 0 {
		score = &a.Score
	}
	return []any{a.JobID, a.Kind, a.Outcome, errorKind, a.Latency.Milliseconds(), score, a.Cached}
}

// Stats agrega as tentativas desde since.
func (r *AttemptRepository) Stats(ctx context.Context, since time.Time) ([]Stat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT kind, outcome, COUNT(*), COALESCE(AVG(latency_ms), 0)
		FROM captcha_attempts
		WHERE created_at >= $1
		GROUP BY kind, outcome
		ORDER BY kind, outcome
	`, since)
	if err != nil {
		return nil, fmt.Errorf("erro consultando tentativas: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Stat, error) {
		var s Stat
		var avgMS float64
		if err := row.Scan(&s.Kind, &s.Outcome, &s.Count, &avgMS); err != nil {
			return Stat{}, err
		}
		s.AvgLatency = time.Duration(avgMS * float64(time.Millisecond))
		return s, nil
	})
}

func (r *AttemptRepository) Close() {
	r.db.Close()
}
