package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/commonwf"
	"github.com/aretw0/commonwf/internal/cli"
	"github.com/aretw0/commonwf/internal/config"
	"github.com/aretw0/commonwf/internal/logging"
	"github.com/aretw0/commonwf/pkg/adapters/memory"
	"github.com/aretw0/commonwf/pkg/adapters/redis"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "commonwf",
	Short: "Generate inputs for common DFT workflows",
	Long: `commonwf validates engine-agnostic workflow inputs and translates them into
the inputs of a specific quantum engine, using the engine's protocols.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		persistent := cmd.Root().PersistentFlags()
		if err := v.BindPFlag("log_level", persistent.Lookup("log-level")); err != nil {
			return err
		}
		if err := v.BindPFlag("output", persistent.Lookup("output")); err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("addr"); f != nil {
			if err := v.BindPFlag("serve.addr", f); err != nil {
				return err
			}
		}

		var err error
		if cfg, err = config.Load(v, cfgFile); err != nil {
			return err
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = logging.New(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./commonwf.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringP("output", "o", config.OutputYAML, "output format: yaml or json")
}

// newStore opens the configured node store.
func newStore() (ports.NodeStore, error) {
	switch cfg.Store.Kind {
	case config.StoreRedis:
		r := cfg.Store.Redis
		logger.Debug("using redis store", "addr", r.Addr, "prefix", r.Prefix)
		return redis.New(r.Addr, r.Password, r.DB, redis.WithPrefix(r.Prefix)), nil
	default:
		var nodes []domain.Node
		if cfg.Store.Seed != "" {
			var err error
			if nodes, err = cli.LoadNodes(cfg.Store.Seed); err != nil {
				return nil, err
			}
		}
		logger.Debug("using memory store", "nodes", len(nodes))
		store, err := memory.NewFromNodes(nodes...)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// newEngine creates the engine on the configured store.
func newEngine(opts ...commonwf.Option) (*commonwf.Engine, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}
	opts = append([]commonwf.Option{commonwf.WithLogger(logger), commonwf.WithStore(store)}, opts...)
	eng, err := commonwf.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}
