package models

//go:generate mockgen -source=run.go -package=models -destination=run_mock.go

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/jinzhu/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidTransition is returned when an event does not follow the
// run's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunRepo is the run ledger.
type RunRepo interface {
	Create(run *Run) error
	ByID(id string) (Run, error)
	// List returns the most recent runs, newest first.
	List(limit int) ([]Run, error)
	// GetWithStatus returns runs whose latest event has one of the
	// statuses, limited to that number.
	GetWithStatus(statuses []string, limit int) ([]Run, error)
	// AddEvent records event and appends it to run.Events.
	AddEvent(run *Run, event PostRunEvent) (RunEvent, error)
	SetAccuracy(run *Run, float, fixed float64) error
	SetArtifacts(run *Run, artifactURL, reportURL string) error
	StoreReport(run Run, report Report) error
	GetReport(runID string) (Report, error)
}

type runRepo struct{ db *gorm.DB }

// RunDataSource returns the data source for runs.
func RunDataSource(db *gorm.DB) RunRepo {
	return &runRepo{db: db}
}

const (
	sqlRunStatus = `SELECT j.id
FROM runs j
LEFT join run_events e
ON j.id = e.run_id
	AND e.timestamp = (
		SELECT max(timestamp)
		FROM run_events e1
		WHERE j.id = e1.run_id
	)
WHERE (e.status in (?))
LIMIT ?
`
)

func (repo *runRepo) Create(run *Run) error {
	return repo.db.Create(run).Error
}

func (repo *runRepo) ByID(id string) (Run, error) {
	var run Run
	err := repo.db.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp")
	}).First(&run, "id = ?", id).Error
	return run, err
}

func (repo *runRepo) List(limit int) ([]Run, error) {
	var runs []Run
	err := repo.db.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp")
	}).Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

func (repo *runRepo) GetWithStatus(statuses []string, limit int) ([]Run, error) {
	db := repo.db
	rows, err := db.Raw(sqlRunStatus, statuses, limit).Rows()
	if err != nil {
		return nil, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	var runs []Run
	err = db.Preload("Events").Where("id in (?)", ids).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

type idRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// scanIDs reads a single id column and closes rows.
func scanIDs(rows idRows) ([]string, error) {
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (repo *runRepo) AddEvent(run *Run, event PostRunEvent) (RunEvent, error) {
	current := run.Status()
	if !CanTransition(current, event.Status) {
		return RunEvent{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, event.Status)
	}
	newEvent := RunEvent{
		RunID:     run.ID,
		Timestamp: time.Now(),
		Status:    event.Status,
		Stage:     event.Stage,
		Message:   event.Message,
		Code:      event.Code,
	}
	if err := repo.db.Create(&newEvent).Error; err != nil {
		return RunEvent{}, err
	}
	run.Events = append(run.Events, newEvent)
	return newEvent, nil
}

func (repo *runRepo) SetAccuracy(run *Run, float, fixed float64) error {
	run.FloatAcc = &float
	run.FixedAcc = &fixed
	return repo.db.Model(run).Updates(map[string]interface{}{
		"float_acc": float,
		"fixed_acc": fixed,
	}).Error
}

func (repo *runRepo) SetArtifacts(run *Run, artifactURL, reportURL string) error {
	run.ArtifactURL = artifactURL
	run.ReportURL = reportURL
	return repo.db.Model(run).Updates(map[string]interface{}{
		"artifact_url": artifactURL,
		"report_url":   reportURL,
	}).Error
}

func (repo *runRepo) StoreReport(run Run, report Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return repo.db.Create(&RunReport{
		RunID:   run.ID,
		Version: ReportVersion,
		Report:  string(b),
	}).Error
}

func (repo *runRepo) GetReport(runID string) (Report, error) {
	var stored RunReport
	var report Report
	err := repo.db.Where("run_id = ?", runID).Last(&stored).Error
	if err != nil {
		return report, err
	}
	err = json.Unmarshal([]byte(stored.Report), &report)
	return report, err
}
