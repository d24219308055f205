// Package store persists an oplog to MySQL via GORM, one row per
// operation, so a collaboration server can restart without losing
// history and a fresh replica can bootstrap by loading a document's
// full op history instead of waiting on Kafka replay.
package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/loomtext/egwalker/oplog"
)

// OpRow is the GORM model for a single persisted operation. ID is a
// plain autoincrement column and is the only thing Load sorts by:
// (DocID, Seq) is only monotonic per agent, so two ops from different
// agents can share a Seq and tie-break arbitrarily under any ordering
// derived from the composite key, which can surface a child op before
// the parent it depends on. ID reflects true insertion order, which is
// always causally sound since a parent is always appended (and hence
// assigned a lower ID) before any op naming it as a parent. Parents is
// stored as a JSON array of Id since GORM has no native array column
// for MySQL; Content is stored as its own column so simple insert/
// delete queries never need to touch the JSON blob.
type OpRow struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	DocID      string `gorm:"column:doc_id;index:idx_doc_agent_seq,unique"`
	Seq        int    `gorm:"column:seq;index:idx_doc_agent_seq,unique"`
	Agent      string `gorm:"column:agent;index:idx_doc_agent_seq,unique"`
	Kind       string `gorm:"column:kind"`
	Pos        int    `gorm:"column:pos"`
	Content    string `gorm:"column:content"`
	ParentsRaw []byte `gorm:"column:parents"`
}

func (OpRow) TableName() string { return "egwalker_ops" }

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&OpRow{}); err != nil {
		return fmt.Errorf("store: automigrate: %w", err)
	}
	return nil
}

// Append persists a single op that was just accepted into the given
// document's oplog, in insertion order. Callers are expected to call
// this once per successful oplog.OpLog.AppendRemote or AppendLocal.
func (s *Store) Append(docID string, op oplog.Op[rune], parentIDs []oplog.Id) error {
	raw, err := json.Marshal(parentIDs)
	if err != nil {
		return fmt.Errorf("store: marshal parents: %w", err)
	}

	row := OpRow{
		DocID:      docID,
		Seq:        op.ID.Seq,
		Agent:      op.ID.Agent,
		Kind:       string(op.Kind),
		Pos:        op.Pos,
		Content:    string(op.Content),
		ParentsRaw: raw,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Load reconstructs a document's oplog from persisted rows, replaying
// them through AppendRemote in ID order (true insertion order, hence
// causally sound: an op's parents were always appended, and therefore
// assigned a lower ID, before it).
func (s *Store) Load(docID string) (*oplog.OpLog[rune], error) {
	var rows []OpRow
	if err := s.db.Where("doc_id = ?", docID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}

	log := oplog.New[rune]()
	for _, row := range rows {
		var parentIDs []oplog.Id
		if err := json.Unmarshal(row.ParentsRaw, &parentIDs); err != nil {
			return nil, fmt.Errorf("store: unmarshal parents for %s/%d: %w", row.Agent, row.Seq, err)
		}

		content := rune(0)
		if row.Kind == string(oplog.Insert) {
			for _, r := range row.Content {
				content = r
				break
			}
		}

		op := oplog.Op[rune]{
			InnerOp: oplog.InnerOp[rune]{
				Kind:    oplog.Kind(row.Kind),
				Pos:     row.Pos,
				Content: content,
			},
			ID: oplog.Id{Agent: row.Agent, Seq: row.Seq},
		}

		if _, _, err := log.AppendRemote(op, parentIDs); err != nil {
			return nil, fmt.Errorf("store: replay %s/%d: %w", row.Agent, row.Seq, err)
		}
	}
	return log, nil
}
