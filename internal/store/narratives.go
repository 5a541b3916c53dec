package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AddNarrative stores a narrative with its ideas in one transaction.
func (s *SQLiteStore) AddNarrative(ctx context.Context, n *Narrative) error {
	n.MemberLabelsJSON = encode(n.MemberLabels, "[]")
	n.EvidenceJSON = encode(n.Evidence, "[]")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin narrative %s: %w", n.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO narratives (id, report_id, cluster_id, title, summary, momentum, novelty, saturation, member_labels, evidence, alerted)
		VALUES (:id, :report_id, :cluster_id, :title, :summary, :momentum, :novelty, :saturation, :member_labels, :evidence, :alerted)
	`, n)
	if err != nil {
		return fmt.Errorf("insert narrative %s: %w", n.ID, err)
	}

	for i := range n.Ideas {
		idea := &n.Ideas[i]
		idea.NarrativeID = n.ID
		idea.Position = i
		idea.NeighborsJSON = encode(idea.Neighbors, "[]")
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO ideas (id, narrative_id, position, title, pitch, target_user, mvp_scope, why_now, validation,
				saturation_level, saturation_score, neighbors, competition, pivot)
			VALUES (:id, :narrative_id, :position, :title, :pitch, :target_user, :mvp_scope, :why_now, :validation,
				:saturation_level, :saturation_score, :neighbors, :competition, :pivot)
		`, idea)
		if err != nil {
			return fmt.Errorf("insert idea %s: %w", idea.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit narrative %s: %w", n.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetNarrative(ctx context.Context, id string) (*Narrative, error) {
	var n Narrative
	if err := s.db.GetContext(ctx, &n, "SELECT * FROM narratives WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get narrative %s: %w", id, notFound(err))
	}
	list := []Narrative{n}
	if err := s.loadIdeas(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListNarratives returns narratives with their ideas, in report order
// (cluster id) when filtered by report and by momentum otherwise.
func (s *SQLiteStore) ListNarratives(ctx context.Context, opts NarrativeListOpts) ([]Narrative, error) {
	query := "SELECT * FROM narratives WHERE 1=1"
	var args []any

	if opts.ReportID != "" {
		query += " AND report_id = ?"
		args = append(args, opts.ReportID)
	}
	if opts.MinScore > 0 {
		query += " AND momentum + novelty >= ?"
		args = append(args, opts.MinScore)
	}
	if opts.Unalerted {
		query += " AND alerted = 0"
	}

	if opts.ReportID != "" {
		query += " ORDER BY cluster_id"
	} else {
		query += " ORDER BY momentum DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var narratives []Narrative
	if err := s.db.SelectContext(ctx, &narratives, query, args...); err != nil {
		return nil, fmt.Errorf("list narratives: %w", err)
	}
	if err := s.loadIdeas(ctx, narratives); err != nil {
		return nil, err
	}
	return narratives, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, narrativeID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE narratives SET alerted = 1 WHERE id = ?", narrativeID)
	if err != nil {
		return fmt.Errorf("mark alerted %s: %w", narrativeID, err)
	}
	return nil
}

// loadIdeas decodes the JSON columns of narratives and attaches their ideas.
func (s *SQLiteStore) loadIdeas(ctx context.Context, narratives []Narrative) error {
	if len(narratives) == 0 {
		return nil
	}

	ids := make([]string, len(narratives))
	byID := make(map[string]*Narrative, len(narratives))
	for i := range narratives {
		n := &narratives[i]
		json.Unmarshal([]byte(n.MemberLabelsJSON), &n.MemberLabels)
		json.Unmarshal([]byte(n.EvidenceJSON), &n.Evidence)
		n.Ideas = []Idea{}
		ids[i] = n.ID
		byID[n.ID] = n
	}

	query, args, err := sqlx.In("SELECT * FROM ideas WHERE narrative_id IN (?) ORDER BY narrative_id, position", ids)
	if err != nil {
		return fmt.Errorf("build ideas query: %w", err)
	}
	var ideas []Idea
	if err := s.db.SelectContext(ctx, &ideas, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("list ideas: %w", err)
	}
	for _, idea := range ideas {
		json.Unmarshal([]byte(idea.NeighborsJSON), &idea.Neighbors)
		n := byID[idea.NarrativeID]
		n.Ideas = append(n.Ideas, idea)
	}
	return nil
}
