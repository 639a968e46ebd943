package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ekaracan/newspulse/app/breaker"
)

func NewHandler(scheduler SchedulerInterface, engine InstabilityInterface,
	circuits *breaker.Registry, countries []string, version string) *Handler {
	return &Handler{
		scheduler: scheduler,
		engine:    engine,
		circuits:  circuits,
		countries: countries,
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"countries": h.countries,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetInstability serves the composite instability score for a country.
func (h *Handler) GetInstability(c *gin.Context) {
	country, ok := h.resolveCountry(c)
	if !ok {
		return
	}

	score, err := h.engine.Compute(c.Request.Context(), country)
	if err != nil {
		slog.Error("Instability computation failed", "country", country, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute instability score"})
		return
	}

	c.JSON(http.StatusOK, score)
}

// GetAnomaly serves the 30-day volume anomaly signal for a country.
func (h *Handler) GetAnomaly(c *gin.Context) {
	country, ok := h.resolveCountry(c)
	if !ok {
		return
	}

	anomaly, err := h.engine.Anomaly(c.Request.Context(), country)
	if err != nil {
		slog.Error("Anomaly computation failed", "country", country, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute volume anomaly"})
		return
	}

	c.JSON(http.StatusOK, anomaly)
}

func (h *Handler) resolveCountry(c *gin.Context) (string, bool) {
	country := c.Param("country")
	if !slices.Contains(h.countries, country) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Unsupported country",
			"supported": h.countries,
		})
		return "", false
	}
	return country, true
}

// APITriggerIngestion requests an out-of-band ingestion cycle. The cycle
// runs asynchronously; a pending request is reported as a conflict.
func (h *Handler) APITriggerIngestion(c *gin.Context) {
	if err := h.scheduler.TriggerNow(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Ingestion cycle triggered",
	})
}

func (h *Handler) APIListCircuits(c *gin.Context) {
	metrics := h.circuits.AllMetrics()
	c.JSON(http.StatusOK, gin.H{
		"circuits": metrics,
		"total":    len(metrics),
	})
}

func (h *Handler) APIResetCircuit(c *gin.Context) {
	name := c.Param("name")

	if !slices.ContainsFunc(h.circuits.AllMetrics(), func(m breaker.Metrics) bool {
		return m.Name == name
	}) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown circuit"})
		return
	}

	h.circuits.Reset(name)
	slog.Info("Circuit reset via API", "circuit", name)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"circuit": name,
		"state":   string(breaker.StateClosed),
	})
}
