package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/auth"
	"github.com/limistah/conciliation-service/internal/handlers"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/metrics"
	"github.com/limistah/conciliation-service/internal/middleware"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
)

// Dependencies are what the HTTP layer needs from main
type Dependencies struct {
	UseCases   *usecases.UseCases
	JWTService *auth.JWTService
	Tolerance  matching.Tolerance
	DB         handlers.Pinger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := handlers.NewAuthHandler(deps.UseCases.User, deps.JWTService)
	authGroup := router.Group("/api/v1")
	{
		authGroup.POST("/auth/register", authHandler.Register)
		authGroup.POST("/auth/login", authHandler.Login)
		authGroup.POST("/auth/refresh", middleware.AuthMiddleware(deps.JWTService), authHandler.RefreshToken)
		authGroup.POST("/auth/change-password", middleware.AuthMiddleware(deps.JWTService), authHandler.ChangePassword)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(deps.JWTService))
	{
		terminalHandler := handlers.NewTerminalHandler(deps.UseCases.Terminal)
		reconciliationHandler := handlers.NewReconciliationHandler(deps.UseCases.Reconciliation, deps.Tolerance)

		terminals := v1.Group("/terminals")
		{
			terminals.POST("", terminalHandler.CreateTerminal)
			terminals.GET("", terminalHandler.ListTerminals)
			terminals.GET("/:id", terminalHandler.GetTerminal)
			terminals.DELETE("/:id", middleware.RequireRole(string(models.UserRoleAdmin)), terminalHandler.DeactivateTerminal)

			terminals.POST("/:id/sales", terminalHandler.RegisterSales)
			terminals.GET("/:id/sales", terminalHandler.ListSales)
			terminals.POST("/:id/receipts", terminalHandler.RegisterReceipts)
			terminals.GET("/:id/receipts", terminalHandler.ListReceipts)

			terminals.GET("/:id/reconciliations", reconciliationHandler.ListReconciliations)
			terminals.POST("/:id/reconciliations/:period", reconciliationHandler.Reconcile)                           // conciliar_maquininha
			terminals.GET("/:id/reconciliations/:period", reconciliationHandler.GetReconciliation)                    // period summary
			terminals.POST("/:id/reconciliations/:period/matching", reconciliationHandler.RunAutomaticMatching)       // executar_matching_automatico
			terminals.POST("/:id/reconciliations/:period/matching/grouped", reconciliationHandler.RunGroupedMatching) // executar_matching_agrupado
			terminals.GET("/:id/reconciliations/:period/divergences", reconciliationHandler.GetDivergences)           // obter_divergencias_conciliacao
			terminals.GET("/:id/reconciliations/:period/export", reconciliationHandler.ExportReport)                  // XLSX workbook
		}

		reconciliations := v1.Group("/reconciliations")
		{
			reconciliations.POST("/links", reconciliationHandler.LinkManually) // vincular_transacoes_manual
			reconciliations.DELETE("/links/:sale_id", reconciliationHandler.Unlink)
		}

		v1.POST("/divergences/:id/resolve", reconciliationHandler.ResolveDivergence)
	}
}
