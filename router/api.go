package router

import (
	"context"
	"database/sql"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/letya999/duty-bot/handlers"
	"github.com/letya999/duty-bot/internal/config"
	"github.com/letya999/duty-bot/internal/lock"
	"github.com/letya999/duty-bot/internal/session"
	"github.com/letya999/duty-bot/services"
)

func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize services
	auditService := services.NewAuditService(pg)
	conflictService := services.NewConflictService(pg)
	assignmentService := services.NewAssignmentService(pg, conflictService, auditService, config.App.Location())
	rotationService := services.NewRotationService(pg, assignmentService, auditService, lock.New(rdb))
	escalationService := services.NewEscalationService(pg, auditService)
	statsService := services.NewStatsService(pg)
	teamService := services.NewTeamService(pg)

	if config.App.CalendarEnabled {
		calendarSync, err := services.NewGoogleCalendarSync(context.Background(),
			config.App.CalendarID, config.App.CalendarCredentials)
		if err != nil {
			log.Printf("Warning: calendar export disabled, failed to initialize: %v", err)
		} else {
			assignmentService.SetCalendarSync(calendarSync)
		}
	}

	sessionStore := session.NewStore(rdb, config.App.SessionTTL())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(sessionStore, config.App.BootstrapToken)
	teamHandler := handlers.NewTeamHandler(teamService, auditService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	rotationHandler := handlers.NewRotationHandler(rotationService)
	escalationHandler := handlers.NewEscalationHandler(escalationService)
	statsHandler := handlers.NewStatsHandler(statsService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/api/v1/auth/sessions", authHandler.CreateSession)
	r.DELETE("/api/v1/auth/sessions/:token", authHandler.DeleteSession)

	api := r.Group("/api/v1")
	api.Use(handlers.RequireSession(sessionStore))
	{
		// Workspaces
		api.POST("/workspaces/:id/teams", teamHandler.CreateTeam)
		api.GET("/workspaces/:id/teams", teamHandler.ListTeams)
		api.PUT("/workspaces/:id/cto", escalationHandler.SetCTO)
		api.GET("/workspaces/:id/cto", escalationHandler.GetCTO)
		api.POST("/workspaces/:id/stats/recalculate", statsHandler.Recalculate)
		api.GET("/workspaces/:id/stats", statsHandler.GetStats)

		// Teams
		api.GET("/teams/:id", teamHandler.GetTeam)
		api.PUT("/teams/:id", teamHandler.UpdateTeam)
		api.DELETE("/teams/:id", teamHandler.DeleteTeam)
		api.PUT("/teams/:id/lead", teamHandler.SetTeamLead)
		api.PUT("/teams/:id/mode", teamHandler.SetAssignmentMode)

		// Assignments
		api.PUT("/teams/:id/duty", assignmentHandler.SetAssignment)
		api.PUT("/teams/:id/duty/range", assignmentHandler.SetRange)
		api.GET("/teams/:id/duty", assignmentHandler.ListRange)
		api.GET("/teams/:id/duty/:date", assignmentHandler.GetAssignments)
		api.DELETE("/teams/:id/duty/:date", assignmentHandler.ClearAssignment)

		// Rotation
		api.PUT("/teams/:id/rotation", rotationHandler.EnableRotation)
		api.DELETE("/teams/:id/rotation", rotationHandler.DisableRotation)
		api.GET("/teams/:id/rotation/next", rotationHandler.GetNextPerson)
		api.POST("/teams/:id/rotation/assign", rotationHandler.AssignRotation)

		// Escalations
		api.POST("/teams/:id/escalations", escalationHandler.CreateEscalation)
		api.GET("/teams/:id/escalations/active", escalationHandler.GetActive)
		api.POST("/escalations/:id/ack", escalationHandler.Acknowledge)
		api.POST("/escalations/:id/level2", escalationHandler.EscalateLevel2)
	}

	return r
}
