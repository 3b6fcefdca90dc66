// Command jigcloud es el binario del backend: API HTTP, worker de búsqueda y
// tareas operativas (migraciones, claves, outbox).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ji-devs/ji-cloud-sub012/internal/app"
	"github.com/ji-devs/ji-cloud-sub012/internal/config"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

func main() {
	var (
		envFile    string
		configPath string
	)

	root := &cobra.Command{
		Use:           "jigcloud",
		Short:         "Backend de Ji Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional; en producción todo viene del entorno
			_ = godotenv.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (opcional)")
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta a config.yaml (env CONFIG_PATH)")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := config.Init(cfg); err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:     cfg.App.Env,
			Level:   cfg.Log.Level,
			Service: "jigcloud",
			Version: app.Version,
			Epoch:   cfg.App.Epoch,
		})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newMigrateCmd(&configPath),
		newKeysCmd(),
		newOutboxCmd(loadConfig),
	)

	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
