package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ConsolidationUC *einvoice.ConsolidationUseCase
	AutoUC          *einvoice.AutoConsolidationUseCase
	PDFUC           *einvoice.PDFUseCase
	JWTSecret       string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	handler := NewConsolidationHandler(deps.ConsolidationUC, deps.AutoUC, deps.PDFUC)
	consolidations := protected.Group("/consolidations")

	// Las rutas fijas van antes de /:id para que Fiber no las capture como parámetro.
	consolidations.Post("/preview", handler.Preview)
	consolidations.Get("/auto/status", handler.AutoStatus)
	consolidations.Get("/auto/settings", handler.GetAutoSettings)
	consolidations.Put("/auto/settings", RequireRole("admin"), handler.UpdateAutoSettings)

	consolidations.Post("/", RequireRole("admin", "contador"), handler.Submit)
	consolidations.Get("/", handler.History)
	consolidations.Get("/:id", handler.GetByID)
	consolidations.Post("/:id/refresh", handler.Refresh)
	consolidations.Post("/:id/cancel", RequireRole("admin", "contador"), handler.Cancel)
	consolidations.Get("/:id/pdf", handler.DownloadPDF)
}
