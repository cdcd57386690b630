package models

import (
	"fmt"
	"time"

	"github.com/dchest/uniuri"
	"github.com/jinzhu/gorm"
	uuid "github.com/satori/go.uuid"
)

const (
	// StatusSubmitted is submitted run state.
	StatusSubmitted = "SUBMITTED"
	// StatusStarted is started run state.
	StatusStarted = "STARTED"
	// StatusCompiled is the state after the emulation has been compiled
	// and evaluated.
	StatusCompiled = "COMPILED"
	// StatusSynthesizing is synthesizing run state.
	StatusSynthesizing = "SYNTHESIZING"
	// StatusCompleted is completed run state.
	StatusCompleted = "COMPLETED"
	// StatusErrored is errored run state.
	StatusErrored = "ERRORED"
)

// uuidHook hooks new uuid as primary key for models before creation.
type uuidHook struct{}

func (u uuidHook) BeforeCreate(scope *gorm.Scope) error {
	return scope.SetColumn("id", uuid.NewV4().String())
}

// Run model. One run is one pass of the workflow over a model.
type Run struct {
	uuidHook
	ID          string     `gorm:"primary_key" json:"id"`
	Project     string     `json:"project"`
	ModelPath   string     `json:"model_path"`
	OutputDir   string     `json:"output_dir"`
	Part        string     `json:"part"`
	Token       string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	Events      []RunEvent `json:"events" gorm:"ForeignKey:RunID"`
	FloatAcc    *float64   `json:"float_accuracy,omitempty"`
	FixedAcc    *float64   `json:"fixed_accuracy,omitempty"`
	ArtifactURL string     `json:"artifact_url,omitempty"`
	ReportURL   string     `json:"report_url,omitempty"`
}

// NewRun creates a new Run with a fresh callback token.
func NewRun(project, modelPath, outputDir, part string) Run {
	return Run{
		Project:   project,
		ModelPath: modelPath,
		OutputDir: outputDir,
		Part:      part,
		Token:     uniuri.NewLen(64),
	}
}

// ArtifactKey is the storage key of the zipped project.
func (r Run) ArtifactKey() string {
	return fmt.Sprintf("runs/%s/project.zip", r.ID)
}

// ReportKey is the storage key of the utilisation report.
func (r Run) ReportKey() string {
	return fmt.Sprintf("runs/%s/vivado_synth.rpt", r.ID)
}

// Status returns the run status.
func (r *Run) Status() string {
	events := r.Events
	length := len(events)
	if length > 0 {
		return events[length-1].Status
	}
	return StatusSubmitted
}

// HasStarted returns if the run has started.
func (r *Run) HasStarted() bool {
	return hasStarted(r.Status())
}

// HasFinished returns if the run is finished.
func (r *Run) HasFinished() bool {
	return hasFinished(r.Status())
}

// RunEvent model.
type RunEvent struct {
	uuidHook
	ID        string    `gorm:"primary_key" json:"-"`
	RunID     string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Code      int       `json:"code"`
}

// PostRunEvent is post request body for run events.
type PostRunEvent struct {
	Status  string `json:"status" validate:"nonzero"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// RunReport model.
type RunReport struct {
	uuidHook
	ID      string `gorm:"primary_key" json:"-"`
	Run     Run    `json:"-" gorm:"ForeignKey:RunID"`
	RunID   string `json:"-"`
	Version string `json:"-"`
	Report  string `json:"report" sql:"type:JSONB NOT NULL DEFAULT '{}'::JSONB"`
}

var statuses = struct {
	started  []string
	finished []string
}{
	started:  []string{StatusStarted, StatusCompiled, StatusSynthesizing, StatusCompleted, StatusErrored},
	finished: []string{StatusCompleted, StatusErrored},
}

func hasStarted(status string) bool {
	return inSlice(statuses.started, status)
}

func hasFinished(status string) bool {
	return inSlice(statuses.finished, status)
}

// CanTransition returns if the status can move to the next stage.
func CanTransition(current string, next string) bool {
	switch current {
	case StatusSubmitted:
		return inSlice([]string{StatusStarted, StatusErrored}, next)
	case StatusStarted:
		return inSlice([]string{StatusCompiled, StatusErrored}, next)
	case StatusCompiled:
		return inSlice([]string{StatusSynthesizing, StatusCompleted, StatusErrored}, next)
	case StatusSynthesizing:
		return inSlice([]string{StatusCompleted, StatusErrored}, next)
	default:
		return false
	}
}

func inSlice(slice []string, val string) bool {
	for _, v := range slice {
		if val == v {
			return true
		}
	}
	return false
}
