package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/narradar/pkg/investigate"
	"github.com/elonfeng/narradar/pkg/saturation"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Report statuses.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Report is one pipeline run over a period.
type Report struct {
	ID          string     `db:"id" json:"id"`
	PeriodStart time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time  `db:"period_end" json:"period_end"`
	Hash        string     `db:"hash" json:"hash"`
	Status      string     `db:"status" json:"status"`
	DemoMode    bool       `db:"demo_mode" json:"demo_mode"`
	Error       string     `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Entity is a tracked signal subject, shared across reports.
type Entity struct {
	Key       string    `db:"key" json:"key"`
	Label     string    `db:"label" json:"label"`
	Kind      string    `db:"kind" json:"kind"`
	FirstSeen string    `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// Candidate is an entity selected into a report's top-K with its scores.
type Candidate struct {
	ID              string             `db:"id" json:"id"`
	ReportID        string             `db:"report_id" json:"report_id"`
	EntityKey       string             `db:"entity_key" json:"entity_key"`
	Rank            int                `db:"rank" json:"rank"`
	Momentum        float64            `db:"momentum" json:"momentum"`
	Novelty         float64            `db:"novelty" json:"novelty"`
	Quality         float64            `db:"quality" json:"quality"`
	TotalScore      float64            `db:"total_score" json:"total_score"`
	NormalizedScore float64            `db:"normalized_score" json:"normalized_score"`
	FeaturesJSON    string             `db:"features" json:"-"`
	Features        map[string]float64 `db:"-" json:"features"`
	Steps           []Step             `db:"-" json:"steps,omitempty"`
}

// Step is one investigation tool result recorded for a candidate.
type Step struct {
	ID           int64                  `db:"id" json:"-"`
	CandidateID  string                 `db:"candidate_id" json:"-"`
	Step         int                    `db:"step" json:"step"`
	Tool         string                 `db:"tool" json:"tool"`
	InputJSON    string                 `db:"input" json:"-"`
	Input        map[string]any         `db:"-" json:"input"`
	Summary      string                 `db:"summary" json:"summary"`
	LinksJSON    string                 `db:"links" json:"-"`
	Links        []string               `db:"-" json:"links"`
	EvidenceJSON string                 `db:"evidence" json:"-"`
	Evidence     []investigate.Evidence `db:"-" json:"evidence"`
}

// Narrative is a named cluster of candidates within a report.
type Narrative struct {
	ID               string                 `db:"id" json:"id"`
	ReportID         string                 `db:"report_id" json:"report_id"`
	ClusterID        int                    `db:"cluster_id" json:"cluster_id"`
	Title            string                 `db:"title" json:"title"`
	Summary          string                 `db:"summary" json:"summary"`
	Momentum         float64                `db:"momentum" json:"momentum"`
	Novelty          float64                `db:"novelty" json:"novelty"`
	Saturation       float64                `db:"saturation" json:"saturation"`
	MemberLabelsJSON string                 `db:"member_labels" json:"-"`
	MemberLabels     []string               `db:"-" json:"member_labels"`
	EvidenceJSON     string                 `db:"evidence" json:"-"`
	Evidence         []investigate.Evidence `db:"-" json:"evidence"`
	Alerted          bool                   `db:"alerted" json:"alerted"`
	Ideas            []Idea                 `db:"-" json:"ideas"`
}

// Idea is a build suggestion attached to a narrative.
type Idea struct {
	ID              string                `db:"id" json:"id"`
	NarrativeID     string                `db:"narrative_id" json:"narrative_id"`
	Position        int                   `db:"position" json:"-"`
	Title           string                `db:"title" json:"title"`
	Pitch           string                `db:"pitch" json:"pitch"`
	TargetUser      string                `db:"target_user" json:"target_user"`
	MVPScope        string                `db:"mvp_scope" json:"mvp_scope"`
	WhyNow          string                `db:"why_now" json:"why_now"`
	Validation      string                `db:"validation" json:"validation"`
	SaturationLevel string                `db:"saturation_level" json:"saturation_level"`
	SaturationScore float64               `db:"saturation_score" json:"saturation_score"`
	NeighborsJSON   string                `db:"neighbors" json:"-"`
	Neighbors       []saturation.Neighbor `db:"-" json:"neighbors"`
	Competition     string                `db:"competition" json:"competition,omitempty"`
	Pivot           string                `db:"pivot" json:"pivot,omitempty"`
}

// ReportListOpts controls report listing.
type ReportListOpts struct {
	Status string
	Limit  int
}

// NarrativeListOpts controls narrative listing.
type NarrativeListOpts struct {
	ReportID  string
	MinScore  float64
	Unalerted bool
	Limit     int
}

// Store is the persistence interface.
type Store interface {
	CreateReport(ctx context.Context, r *Report) error
	UpdateReportStatus(ctx context.Context, id, status, errMsg string) error
	GetReport(ctx context.Context, id string) (*Report, error)
	LatestReport(ctx context.Context) (*Report, error)
	ListReports(ctx context.Context, opts ReportListOpts) ([]Report, error)

	UpsertEntity(ctx context.Context, e *Entity) error
	AddCandidate(ctx context.Context, c *Candidate) error
	ListCandidates(ctx context.Context, reportID string) ([]Candidate, error)

	AddNarrative(ctx context.Context, n *Narrative) error
	GetNarrative(ctx context.Context, id string) (*Narrative, error)
	ListNarratives(ctx context.Context, opts NarrativeListOpts) ([]Narrative, error)
	MarkAlerted(ctx context.Context, narrativeID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *Report) error {
	if r.Status == "" {
		r.Status = StatusProcessing
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO reports (id, period_start, period_end, hash, status, demo_mode, error, created_at, completed_at)
		VALUES (:id, :period_start, :period_end, :hash, :status, :demo_mode, :error, :created_at, :completed_at)
	`, r)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// UpdateReportStatus moves a report along processing → complete | failed.
// Terminal statuses stamp completed_at.
func (s *SQLiteStore) UpdateReportStatus(ctx context.Context, id, status, errMsg string) error {
	var completed *time.Time
	if status == StatusComplete || status == StatusFailed {
		t := s.now()
		completed = &t
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE reports SET status = ?, error = ?, completed_at = ? WHERE id = ?",
		status, errMsg, completed, id)
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update report %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	var r Report
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM reports WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, notFound(err))
	}
	return &r, nil
}

// LatestReport returns the most recent complete report.
func (s *SQLiteStore) LatestReport(ctx context.Context) (*Report, error) {
	var r Report
	err := s.db.GetContext(ctx, &r,
		"SELECT * FROM reports WHERE status = ? ORDER BY created_at DESC LIMIT 1", StatusComplete)
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", notFound(err))
	}
	return &r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, opts ReportListOpts) ([]Report, error) {
	query := "SELECT * FROM reports WHERE 1=1"
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var reports []Report
	if err := s.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *SQLiteStore) UpsertEntity(ctx context.Context, e *Entity) error {
	if e.LastSeen.IsZero() {
		e.LastSeen = s.now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO entities (key, label, kind, first_seen, last_seen)
		VALUES (:key, :label, :kind, :first_seen, :last_seen)
		ON CONFLICT(key) DO UPDATE SET
			label = excluded.label,
			kind = excluded.kind,
			last_seen = excluded.last_seen
	`, e)
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.Key, err)
	}
	return nil
}

// AddCandidate stores a candidate and its investigation steps in one transaction.
func (s *SQLiteStore) AddCandidate(ctx context.Context, c *Candidate) error {
	c.FeaturesJSON = encode(c.Features, "{}")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin candidate %s: %w", c.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO candidates (id, report_id, entity_key, rank, momentum, novelty, quality, total_score, normalized_score, features)
		VALUES (:id, :report_id, :entity_key, :rank, :momentum, :novelty, :quality, :total_score, :normalized_score, :features)
	`, c)
	if err != nil {
		return fmt.Errorf("insert candidate %s: %w", c.ID, err)
	}

	for i := range c.Steps {
		st := &c.Steps[i]
		st.CandidateID = c.ID
		st.Step = i + 1
		st.InputJSON = encode(st.Input, "{}")
		st.LinksJSON = encode(st.Links, "[]")
		st.EvidenceJSON = encode(st.Evidence, "[]")
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO investigation_steps (candidate_id, step, tool, input, summary, links, evidence)
			VALUES (:candidate_id, :step, :tool, :input, :summary, :links, :evidence)
		`, st)
		if err != nil {
			return fmt.Errorf("insert step %d for %s: %w", st.Step, c.ID, err)
		}
		st.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidate %s: %w", c.ID, err)
	}
	return nil
}

// ListCandidates returns a report's candidates by rank, steps included.
func (s *SQLiteStore) ListCandidates(ctx context.Context, reportID string) ([]Candidate, error) {
	var cands []Candidate
	if err := s.db.SelectContext(ctx, &cands,
		"SELECT * FROM candidates WHERE report_id = ? ORDER BY rank", reportID); err != nil {
		return nil, fmt.Errorf("list candidates %s: %w", reportID, err)
	}
	if len(cands) == 0 {
		return cands, nil
	}

	ids := make([]string, len(cands))
	byID := make(map[string]*Candidate, len(cands))
	for i := range cands {
		json.Unmarshal([]byte(cands[i].FeaturesJSON), &cands[i].Features)
		ids[i] = cands[i].ID
		byID[cands[i].ID] = &cands[i]
	}

	query, args, err := sqlx.In("SELECT * FROM investigation_steps WHERE candidate_id IN (?) ORDER BY candidate_id, step", ids)
	if err != nil {
		return nil, fmt.Errorf("build steps query: %w", err)
	}
	var steps []Step
	if err := s.db.SelectContext(ctx, &steps, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list steps %s: %w", reportID, err)
	}
	for _, st := range steps {
		json.Unmarshal([]byte(st.InputJSON), &st.Input)
		json.Unmarshal([]byte(st.LinksJSON), &st.Links)
		json.Unmarshal([]byte(st.EvidenceJSON), &st.Evidence)
		c := byID[st.CandidateID]
		c.Steps = append(c.Steps, st)
	}
	return cands, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// encode marshals v for a JSON text column, using empty for nil values.
func encode(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}
