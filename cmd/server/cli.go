package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lltxwdk/minimars-server/internal/app"
	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/provider"
	"github.com/lltxwdk/minimars-server/pkg/jwt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var rootCmd = &cobra.Command{
	Use:   "minimars",
	Short: "Minimars booking service",
	Long:  `Booking, card and payment settlement service for Minimars play venues.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*conf.AppConfig, error) {
	confFile, _ := cmd.Flags().GetString("config")
	appConfig, err := conf.NewConfig(confFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	port, _ := cmd.Flags().GetInt("port")
	if port > 0 {
		appConfig.Port = port
	}

	return appConfig, nil
}

// serve builds one server flavour and runs it until SIGINT/SIGTERM.
func serve(cmd *cobra.Command, name string, initialize func(*conf.AppConfig) (*app.App, func(), error)) {
	appConfig, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	server, cleanup, err := initialize(appConfig)
	if err != nil {
		log.Fatalf("failed to init %s app: %v", name, err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Printf("%s app stopped with error: %v", name, err)
	}
}

var frontendCmd = &cobra.Command{
	Use:   "serve:frontend",
	Short: "Starts the customer-facing server",
	Long:  `Starts the HTTP API for customers and the payment provider callbacks.`,
	Run: func(cmd *cobra.Command, args []string) {
		serve(cmd, "frontend", InitializeFrontendApp)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "serve:console",
	Short: "Starts the staff console server",
	Long:  `Starts the reception HTTP API and the outbox relay.`,
	Run: func(cmd *cobra.Command, args []string) {
		serve(cmd, "console", InitializeConsoleApp)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issues an operator access token",
	Long:  `Signs a JWT for the given user id and role with the configured key, for reception terminals and local testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		appConfig, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		subject, _ := cmd.Flags().GetString("sub")
		role, _ := cmd.Flags().GetString("role")
		name, _ := cmd.Flags().GetString("name")
		if _, err := primitive.ObjectIDFromHex(subject); err != nil {
			log.Fatalf("invalid --sub: %v", err)
		}

		manager, err := provider.ProvideJwtGenerator(appConfig)
		if err != nil {
			log.Fatalf("failed to create jwt manager: %v", err)
		}
		token, err := manager.Generate(subject, role, jwt.WithName(name))
		if err != nil {
			log.Fatalf("failed to sign token: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(frontendCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("sub", "", "operator user id (ObjectID hex)")
	tokenCmd.Flags().String("role", "staff", "customer | staff | reviewer")
	tokenCmd.Flags().String("name", "", "operator display name")
	rootCmd.PersistentFlags().IntP("port", "p", 0, "Port for the server to listen on, overrides the value in the config file")
	rootCmd.PersistentFlags().StringP("config", "c", "internal/conf/config.yaml", "path to config file")
}
