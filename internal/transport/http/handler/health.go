package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/bootstrap"
	"docexplorer/internal/vectorstore"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func up() dependencyStatus { return dependencyStatus{OK: true} }

func down(msg string) dependencyStatus { return dependencyStatus{OK: false, Message: msg} }

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check pings the stores the API cannot serve without. The warehouse is
// left out; the explorer reports its own 503 when it is unreachable.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]dependencyStatus{
		"mysql":    h.checkMySQL(ctx),
		"redis":    h.checkRedis(ctx),
		"rabbitmq": h.checkRabbitMQ(),
	}
	statusCode := http.StatusOK
	for _, st := range deps {
		if !st.OK {
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": deps,
		"indices":      h.indices(),
	})
}

// indices summarises in-memory search state. It never fails the check;
// document indices are built on first question.
func (h *HealthHandler) indices() gin.H {
	out := gin.H{"documents": 0, "notes": 0, "keyword_entries": 0}
	if h.app.VectorStore != nil {
		var docs, notes int
		for _, idx := range h.app.VectorStore.Snapshot() {
			switch idx.Kind {
			case vectorstore.KindDocument:
				docs++
			case vectorstore.KindNotes:
				notes++
			}
		}
		out["documents"], out["notes"] = docs, notes
	}
	if h.app.Keywords != nil {
		if n, err := h.app.Keywords.DocCount(); err == nil {
			out["keyword_entries"] = n
		}
	}
	return out
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	if h.app.MySQL == nil {
		return down("not configured")
	}
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return down(err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return down(err.Error())
	}
	return up()
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.app.Redis == nil {
		return down("not configured")
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return down(err.Error())
	}
	return up()
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return down("connection closed")
	}
	return up()
}
