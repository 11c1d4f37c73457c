package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
	infrapdf "github.com/tu-usuario/facturacion-pro/internal/infrastructure/pdf"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/postgres"
	httpRouter "github.com/tu-usuario/facturacion-pro/internal/interfaces/http"
	"github.com/tu-usuario/facturacion-pro/pkg/config"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("myinvois_env", cfg.MyInvois.Env).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	consolidatedRepo := postgres.NewConsolidatedInvoiceRepository(pool)
	attemptRepo := postgres.NewAutoConsolidationRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	supplier := myinvois.SupplierInfo{
		TIN:     cfg.MyInvois.TIN,
		RegNo:   cfg.MyInvois.RegNo,
		Name:    cfg.MyInvois.SupplierName,
		Address: cfg.MyInvois.Address,
		City:    cfg.MyInvois.City,
		State:   cfg.MyInvois.State,
		Country: cfg.MyInvois.Country,
	}
	builder := myinvois.NewDocumentBuilder()
	signerSvc := myinvois.NewDigitalSignatureService()

	// Cliente REST MyInvois — solo se usa en "sandbox" o "prod".
	// En modo "dev" el ciclo de vida simula la aceptación del portal.
	var submitter myinvois.DocumentSubmitter
	if cfg.MyInvois.Env != myinvois.AppEnvDev && cfg.MyInvois.Env != "" {
		client, err := myinvois.NewClient(myinvois.Config{
			Env:          cfg.MyInvois.Env,
			ClientID:     cfg.MyInvois.ClientID,
			ClientSecret: cfg.MyInvois.ClientSecret,
			TIN:          cfg.MyInvois.TIN,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("cliente MyInvois")
		}
		submitter = client
	}

	consolidationUC := einvoice.NewConsolidationUseCase(
		txRunner, invoiceRepo, consolidatedRepo,
		builder, signerSvc, submitter,
		einvoice.MyInvoisConfig{
			AppEnv:       cfg.MyInvois.Env,
			Supplier:     supplier,
			CertPath:     cfg.MyInvois.CertPath,
			CertKeyPath:  cfg.MyInvois.CertKeyPath,
			CertPassword: cfg.MyInvois.CertPassword,
		},
		log.Component("consolidation"),
	)

	// SettingsRepo cumple dos roles: persistir el toggle por empresa y
	// enumerar las empresas con consolidación automática habilitada.
	autoUC := einvoice.NewAutoConsolidationUseCase(
		consolidationUC, attemptRepo, consolidatedRepo, settingsRepo, settingsRepo,
		log.Component("autocons"),
	)

	pdfGenerator := infrapdf.NewMarotoPDFGenerator()
	pdfUC := einvoice.NewPDFUseCase(invoiceRepo, consolidatedRepo, pdfGenerator, supplier)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación Pro API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		ConsolidationUC: consolidationUC,
		AutoUC:          autoUC,
		PDFUC:           pdfUC,
		JWTSecret:       cfg.JWT.Secret,
	})

	// Scheduler de consolidación automática: corre en background cada
	// CheckInterval. El ciclo decide si la ventana del día 3 al 7 está
	// abierta y si ya se intentó hoy, así que el intervalo no necesita
	// ser exacto.
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.AutoCons.CheckInterval)
		defer ticker.Stop()
		runCycle := func() {
			if err := autoUC.RunOnce(schedulerCtx); err != nil {
				log.Error().Err(err).Msg("ciclo de consolidación automática")
			}
		}
		runCycle()
		for {
			select {
			case <-schedulerCtx.Done():
				return
			case <-ticker.C:
				runCycle()
			}
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
