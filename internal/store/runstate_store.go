// Package store persists RunState snapshots and completed BacktestResults,
// adapted from the teacher's MySQLRecorder (internal/db/transaction_recorder.go).
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

// RunStateRecord is the database model for a persisted RunState snapshot.
type RunStateRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	WorkflowID  string    `gorm:"index;not null"`
	LastTick    int64     `gorm:"not null"`
	StateJSON   string    `gorm:"type:text;not null;comment:RunState as JSON"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (RunStateRecord) TableName() string { return "run_states" }

// BacktestResultRecord is the database model for a persisted BacktestResult.
type BacktestResultRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	WorkflowID  string    `gorm:"index;not null"`
	ResultJSON  string    `gorm:"type:text;not null;comment:BacktestResult as JSON"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (BacktestResultRecord) TableName() string { return "backtest_results" }

// MySQLStore implements RunState/BacktestResult persistence using GORM and MySQL.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore opens a connection and auto-migrates the schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	if err := db.AutoMigrate(&RunStateRecord{}, &BacktestResultRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// NewMySQLStoreWithDB wraps an existing GORM DB, still auto-migrating the schema.
func NewMySQLStoreWithDB(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&RunStateRecord{}, &BacktestResultRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// SaveRunState upserts the latest RunState snapshot for a workflow.
func (s *MySQLStore) SaveRunState(workflowID string, state *model.RunState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	record := RunStateRecord{WorkflowID: workflowID, LastTick: state.LastTick, StateJSON: string(payload)}
	result := s.db.Where("workflow_id = ?", workflowID).
		Assign(record).
		FirstOrCreate(&record)
	if result.Error != nil {
		return fmt.Errorf("save run state: %w", result.Error)
	}
	return nil
}

// LoadRunState returns the most recently persisted RunState for a workflow, or
// nil if none exists (callers should fall back to model.NewRunState()).
func (s *MySQLStore) LoadRunState(workflowID string) (*model.RunState, error) {
	var record RunStateRecord
	result := s.db.Where("workflow_id = ?", workflowID).Order("updated_at DESC").First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load run state: %w", result.Error)
	}
	var state model.RunState
	if err := json.Unmarshal([]byte(record.StateJSON), &state); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &state, nil
}

// SaveBacktestResult appends a completed BacktestResult for a workflow.
func (s *MySQLStore) SaveBacktestResult(workflowID string, result *model.BacktestResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal backtest result: %w", err)
	}
	record := BacktestResultRecord{WorkflowID: workflowID, ResultJSON: string(payload)}
	if res := s.db.Create(&record); res.Error != nil {
		return fmt.Errorf("save backtest result: %w", res.Error)
	}
	return nil
}

// ListBacktestResults returns every persisted BacktestResult for a workflow,
// oldest first.
func (s *MySQLStore) ListBacktestResults(workflowID string) ([]model.BacktestResult, error) {
	var records []BacktestResultRecord
	result := s.db.Where("workflow_id = ?", workflowID).Order("created_at ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("list backtest results: %w", result.Error)
	}
	results := make([]model.BacktestResult, 0, len(records))
	for _, rec := range records {
		var br model.BacktestResult
		if err := json.Unmarshal([]byte(rec.ResultJSON), &br); err != nil {
			return nil, fmt.Errorf("unmarshal backtest result: %w", err)
		}
		results = append(results, br)
	}
	return results, nil
}

// Close closes the underlying database connection.
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
