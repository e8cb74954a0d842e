package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/krxvalue/pkg/config"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "krxvalue",
	Short: "KRX 중소형 가치주 스크리너 (TAT = 1/PER + 1/PBR + DIV/100)",
	Long: `krxvalue CLI

KOSPI/KOSDAQ 시가총액 구간 내 저PER·저PBR·고배당 종목을 TAT 점수로 선별하고
월말 리밸런싱 백테스트로 벤치마크 지수와 비교합니다.

Usage:
  go run ./cmd/krxvalue [command]

Examples:
  go run ./cmd/krxvalue screen --market KOSDAQ --date 20260213
  go run ./cmd/krxvalue backtest --start-date 2025-01-01 --end-date 2025-12-31
  go run ./cmd/krxvalue api
  go run ./cmd/krxvalue scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}

// loadConfig loads the environment and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
