package api

import (
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/service/events"
	"github.com/ReconfigureIO/hlsflow/service/storage"
	"github.com/ReconfigureIO/hlsflow/sugar"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run handles requests for runs.
type Run struct {
	Repo models.RunRepo
	// Storage serves published reports. Optional.
	Storage storage.Service
}

// ByID gets a run by ID, 404 if it doesn't exist.
func (r Run) ByID(c *gin.Context) (models.Run, error) {
	var id string
	if !bindID(c, &id) {
		return models.Run{}, errNotFound
	}
	run, err := r.Repo.ByID(id)
	if err != nil {
		sugar.NotFoundOrError(c, err)
		return run, err
	}
	return run, nil
}

// List lists the most recent runs.
func (r Run) List(c *gin.Context) {
	var limit int
	if !bindLimit(c, &limit) {
		return
	}
	var runs []models.Run
	var err error
	if status := c.Query("status"); status != "" {
		runs, err = r.Repo.GetWithStatus([]string{status}, limit)
	} else {
		runs, err = r.Repo.List(limit)
	}
	if err != nil {
		sugar.InternalError(c, err)
		return
	}
	sugar.SuccessResponse(c, http.StatusOK, runs)
}

// Get gets a run with its events.
func (r Run) Get(c *gin.Context) {
	run, err := r.ByID(c)
	if err != nil {
		return
	}
	sugar.SuccessResponse(c, http.StatusOK, run)
}

// Report gets the utilisation summary of a run.
func (r Run) Report(c *gin.Context) {
	run, err := r.ByID(c)
	if err != nil {
		return
	}
	report, err := r.Repo.GetReport(run.ID)
	if err != nil {
		sugar.NotFoundOrError(c, err)
		return
	}
	sugar.SuccessResponse(c, http.StatusOK, report)
}

// RawReport streams the published vendor report of a run.
func (r Run) RawReport(c *gin.Context) {
	run, err := r.ByID(c)
	if err != nil {
		return
	}
	if r.Storage == nil || run.ReportURL == "" {
		sugar.ErrResponse(c, http.StatusNotFound, nil)
		return
	}
	rc, err := r.Storage.Download(run.ReportKey())
	if err != nil {
		sugar.InternalError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.WithError(err).WithField("run", run.ID).Warn("report stream interrupted")
	}
}

// CreateEvent records a stage event posted by a run. The caller must
// present the run's token.
func (r Run) CreateEvent(c *gin.Context) {
	event := events.Event{}
	if err := c.ShouldBindJSON(&event); err != nil {
		sugar.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	post := event.PostRunEvent()
	if !sugar.ValidateRequest(c, post) {
		return
	}

	run, err := r.Repo.ByID(event.RunID)
	if err != nil {
		sugar.NotFoundOrError(c, err)
		return
	}
	if token := bearerToken(c); token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(run.Token)) != 1 {
		sugar.ErrResponse(c, http.StatusForbidden, nil)
		return
	}

	current := run.Status()
	if current == event.Status {
		// Deliveries are retried, so a repeated event is accepted as is.
		// A run without events is implicitly SUBMITTED.
		if len(run.Events) == 0 {
			sugar.SuccessResponse(c, http.StatusOK, run)
			return
		}
		sugar.SuccessResponse(c, http.StatusOK, run.Events[len(run.Events)-1])
		return
	}
	if !models.CanTransition(current, event.Status) {
		sugar.ErrResponse(c, http.StatusBadRequest, fmt.Sprintf("%s not valid when current status is %s", event.Status, current))
		return
	}
	newEvent, err := r.Repo.AddEvent(&run, post)
	if err != nil {
		sugar.InternalError(c, err)
		return
	}
	if !event.Timestamp.IsZero() {
		log.WithFields(log.Fields{
			"run":     run.ID,
			"status":  event.Status,
			"latency": time.Since(event.Timestamp),
		}).Debug("event received")
	}
	sugar.SuccessResponse(c, http.StatusOK, newEvent)
}
