// Comando autoconsolidate ejecuta un único ciclo de consolidación automática
// y termina. Pensado para correr como cron job externo cuando no se quiere
// mantener el scheduler embebido en el proceso de la API.
package main

import (
	"context"
	"os"

	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/postgres"
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
		Str("myinvois_env", cfg.MyInvois.Env).
		Msg("ciclo de consolidación automática (one-shot)")

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
		myinvois.NewDocumentBuilder(),
		myinvois.NewDigitalSignatureService(),
		submitter,
		einvoice.MyInvoisConfig{
			AppEnv: cfg.MyInvois.Env,
			Supplier: myinvois.SupplierInfo{
				TIN:     cfg.MyInvois.TIN,
				RegNo:   cfg.MyInvois.RegNo,
				Name:    cfg.MyInvois.SupplierName,
				Address: cfg.MyInvois.Address,
				City:    cfg.MyInvois.City,
				State:   cfg.MyInvois.State,
				Country: cfg.MyInvois.Country,
			},
			CertPath:     cfg.MyInvois.CertPath,
			CertKeyPath:  cfg.MyInvois.CertKeyPath,
			CertPassword: cfg.MyInvois.CertPassword,
		},
		log.Component("consolidation"),
	)
	autoUC := einvoice.NewAutoConsolidationUseCase(
		consolidationUC, attemptRepo, consolidatedRepo, settingsRepo, settingsRepo,
		log.Component("autocons"),
	)

	if err := autoUC.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("ciclo de consolidación automática")
		os.Exit(1)
	}
	log.Info().Msg("ciclo completado")
}
