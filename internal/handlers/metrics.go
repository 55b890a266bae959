package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/tsquery"
)

// MetricsHandler serves the time-series, log-tail, and event-history reads
// over instance telemetry ingested through sessionhub.Relay.
type MetricsHandler struct {
	querier *tsquery.Querier
	logs    *db.LogEntryDB
	events  *db.EventDB
}

func NewMetricsHandler(database *db.Database) *MetricsHandler {
	return &MetricsHandler{
		querier: tsquery.NewQuerier(database),
		logs:    db.NewLogEntryDB(database),
		events:  db.NewEventDB(database),
	}
}

func (h *MetricsHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/instances/:id/metrics/timeseries", h.TimeSeries)
	group.GET("/instances/:id/logs", h.Logs)
	group.GET("/instances/:id/events", h.Events)
}

// TimeSeries resolves either a named `range` (1h/6h/24h/7d/30d, granularity
// implied) or an explicit `from`/`to`/`granularity` triple, per §4.4.
func (h *MetricsHandler) TimeSeries(c *gin.Context) {
	instanceID := c.Param("id")

	if r := c.Query("range"); r != "" {
		query, err := tsquery.ResolveRange(instanceID, tsquery.Range(r), time.Now().UTC())
		if err != nil {
			respondError(c, err)
			return
		}
		samples, runErr := h.querier.RunInstance(c.Request.Context(), query)
		if runErr != nil {
			respondError(c, runErr)
			return
		}
		c.JSON(200, gin.H{"granularity": query.Granularity, "samples": samples})
		return
	}

	from, fromErr := time.Parse(time.RFC3339, c.Query("from"))
	to, toErr := time.Parse(time.RFC3339, c.Query("to"))
	granularity := c.Query("granularity")
	if fromErr != nil || toErr != nil || granularity == "" {
		respondError(c, apperrors.BadRequest("provide either range, or from/to/granularity"))
		return
	}

	query := &tsquery.Query{InstanceID: instanceID, Granularity: granularity, From: from, To: to}
	samples, runErr := h.querier.RunInstance(c.Request.Context(), query)
	if runErr != nil {
		respondError(c, runErr)
		return
	}
	c.JSON(200, gin.H{"granularity": granularity, "samples": samples})
}

func (h *MetricsHandler) Logs(c *gin.Context) {
	_, pageSize := pageParams(c)
	lines, err := h.logs.Tail(c.Request.Context(), c.Param("id"), pageSize)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": lines})
}

func (h *MetricsHandler) Events(c *gin.Context) {
	_, pageSize := pageParams(c)
	events, err := h.events.ListForInstance(c.Request.Context(), c.Param("id"), pageSize)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": events})
}
