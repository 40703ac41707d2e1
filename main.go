package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/upsrate/internal/server"
	"github.com/tournevent/upsrate/pkg/shipper/ups"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "upsrate",
	Short:   "UPS rate quotes from the command line or over HTTP",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rate-quote HTTP server",
	RunE:  runServe,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Request a single UPS rate",
	Long: `Request a single UPS rate for the configured shipper.

Credentials and shipper context come from UPS_* environment variables;
flags override the shipper context for this call.`,
	RunE: runQuote,
}

var quoteFlags struct {
	destination   string
	service       string
	packages      []string
	full          bool
	shipperZip    string
	shipperNumber string
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.destination, "dest", "", "destination postal code")
	f.StringVar(&quoteFlags.service, "service", "GND", "service level short name (GND, 2DA, 1DM, ...)")
	f.StringArrayVar(&quoteFlags.packages, "package", nil, "package as LxWxH:WEIGHT in inches and pounds (repeatable)")
	f.BoolVar(&quoteFlags.full, "full", false, "print the full response document instead of the price")
	f.StringVar(&quoteFlags.shipperZip, "shipper-zip", "", "shipper postal code (default $UPS_SHIPPER_ZIP)")
	f.StringVar(&quoteFlags.shipperNumber, "shipper-number", "", "shipper account number (default $UPS_SHIPPER_NUMBER)")
	_ = quoteCmd.MarkFlagRequired("dest")

	rootCmd.AddCommand(serveCmd, quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	registry := initShipperRegistry(cfg, logger, tracer)

	logger.Info("Starting UPS rate service",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", registry.Names()),
	)

	srv := server.New(server.Config{Port: cfg.Port}, registry, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initCLILogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pkgs, err := parsePackages(quoteFlags.packages)
	if err != nil {
		return err
	}

	client := newRateClient(cfg, logger)
	if quoteFlags.shipperZip != "" {
		client.SetShipperZip(quoteFlags.shipperZip)
	}
	if quoteFlags.shipperNumber != "" {
		client.SetShipperNumber(quoteFlags.shipperNumber)
	}
	client.SetPackages(pkgs)
	client.SetReturnPriceOnly(!quoteFlags.full)

	result, err := client.GetShippingRateOrObject(cmd.Context(), quoteFlags.destination, quoteFlags.service)
	if err != nil {
		return fmt.Errorf("quote failed: %w", err)
	}

	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, result *ups.RateResult) {
	if result.PriceOnly {
		cmd.Printf("%.2f\n", result.Price)
		return
	}
	cmd.Println(result.Document.OutputXML(true))
}
