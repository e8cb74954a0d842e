package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/report"
	"github.com/wonny/krxvalue/pkg/logger"
)

const wonPerEok = 100_000_000 // 1억원

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "TAT 가치주 스크리닝",
	Long: `지정한 시장/날짜의 시가총액 구간 내 종목을 TAT 점수로 정렬합니다.

TAT = 1/PER + 1/PBR + DIV/100
요청 날짜에 데이터가 없으면 최대 14일 전까지 거슬러 올라갑니다.

Example:
  go run ./cmd/krxvalue screen
  go run ./cmd/krxvalue screen --market KOSDAQ --date 2026-02-13 --top-n 20
  go run ./cmd/krxvalue screen --cap-min-eok 3000 --cap-max-eok 8000 --per-max 10 --csv out.csv`,
	RunE: runScreen,
}

var (
	screenMarket    string
	screenDate      string
	screenCapMinEok int64
	screenCapMaxEok int64
	screenTopN      int
	screenPERMax    string
	screenPBRMax    string
	screenDivPolicy string
	screenCSVPath   string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	// Flags (0 / empty = 환경설정 기본값)
	screenCmd.Flags().StringVar(&screenMarket, "market", "KOSPI", "시장 (KOSPI|KOSDAQ)")
	screenCmd.Flags().StringVar(&screenDate, "date", "", "기준일 (YYYYMMDD 또는 YYYY-MM-DD, 기본: 오늘)")
	screenCmd.Flags().Int64Var(&screenCapMinEok, "cap-min-eok", 0, "시가총액 하한 (억원, 기본: SCREEN_CAP_MIN)")
	screenCmd.Flags().Int64Var(&screenCapMaxEok, "cap-max-eok", 0, "시가총액 상한 (억원, 기본: SCREEN_CAP_MAX)")
	screenCmd.Flags().IntVar(&screenTopN, "top-n", 0, "상위 종목 수 (1-100, 기본: SCREEN_TOP_N)")
	screenCmd.Flags().StringVar(&screenPERMax, "per-max", "", "PER 상한 (비우면 미적용)")
	screenCmd.Flags().StringVar(&screenPBRMax, "pbr-max", "", "PBR 상한 (비우면 미적용)")
	screenCmd.Flags().StringVar(&screenDivPolicy, "div-policy", "", "배당 결측 처리 (zero|exclude, 기본: SCREEN_DIV_POLICY)")
	screenCmd.Flags().StringVar(&screenCSVPath, "csv", "", "결과 CSV 저장 경로")
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	req := contracts.ScreenRequest{
		Market:    screenMarket,
		Date:      screenDate,
		CapMin:    cfg.Screening.CapMin,
		CapMax:    cfg.Screening.CapMax,
		TopN:      cfg.Screening.TopN,
		DivPolicy: cfg.Screening.DivPolicy,
	}
	if cmd.Flags().Changed("cap-min-eok") {
		if req.CapMin, err = eokToWon("cap-min-eok", screenCapMinEok); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("cap-max-eok") {
		if req.CapMax, err = eokToWon("cap-max-eok", screenCapMaxEok); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("top-n") {
		req.TopN = screenTopN
	}
	if screenDivPolicy != "" {
		req.DivPolicy = screenDivPolicy
	}
	if req.PERMax, err = parseBound("per-max", screenPERMax); err != nil {
		return err
	}
	if req.PBRMax, err = parseBound("pbr-max", screenPBRMax); err != nil {
		return err
	}

	// 검증은 외부 호출 전에
	criteria, err := contracts.NewCriteria(req, time.Now())
	if err != nil {
		PrintError(err.Error())
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()

	start := time.Now()
	result, err := a.screener.Screen(context.Background(), criteria)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printScreeningResult(criteria, result, time.Since(start))

	if screenCSVPath != "" {
		if err := saveScreeningCSV(screenCSVPath, result); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("CSV 저장: %s", screenCSVPath))
	}

	return nil
}

func printScreeningResult(criteria contracts.Criteria, result *contracts.ScreeningResult, elapsed time.Duration) {
	PrintTitle(fmt.Sprintf("TAT 가치주 스크리닝 - %s", criteria.Market))
	PrintKeyValue("기준일", result.AsOf.Format(contracts.ISODateLayout), 8)
	PrintKeyValue("시총구간", fmt.Sprintf("%s ~ %s 억원",
		strconv.FormatInt(criteria.CapMin/wonPerEok, 10), strconv.FormatInt(criteria.CapMax/wonPerEok, 10)), 8)
	PrintKeyValue("PER/PBR", fmt.Sprintf("%s / %s", formatOptional(criteria.PERMax), formatOptional(criteria.PBRMax)), 8)
	PrintSeparator()

	if len(result.Candidates) == 0 {
		PrintWarning("조건을 만족하는 종목이 없습니다")
	} else {
		widths := []int{4, 8, 16, 10, 8, 8, 8, 9, 9, 9, 8}
		PrintTableHeader([]string{"순위", "코드", "종목명", "시총(조)", "PER", "PBR", "DIV", "PER기여", "PBR기여", "DIV기여", "TAT"}, widths)
		for _, c := range result.Display() {
			div := "-"
			if c.DIV != nil {
				div = strconv.FormatFloat(*c.DIV, 'f', 2, 64)
			}
			PrintTableRow([]string{
				strconv.Itoa(c.Rank),
				c.Ticker,
				c.Name,
				strconv.FormatFloat(c.MarketCapTrillion, 'f', 3, 64),
				strconv.FormatFloat(c.PER, 'f', 2, 64),
				strconv.FormatFloat(c.PBR, 'f', 2, 64),
				div,
				strconv.FormatFloat(c.PERContribution, 'f', 4, 64),
				strconv.FormatFloat(c.PBRContribution, 'f', 4, 64),
				strconv.FormatFloat(c.DIVContribution, 'f', 4, 64),
				strconv.FormatFloat(c.TotalScore, 'f', 4, 64),
			}, widths)
		}
	}

	PrintSeparator()
	if result.Archived {
		PrintWarning(fmt.Sprintf("KRX 조회 실패로 %s 에 저장된 결과를 표시합니다", result.ArchivedAt.Format("2006-01-02 15:04")))
	}
	fmt.Printf("전체 %d / 조건통과 %d / 최종 %d  (cache hit: %t, %.2fs)\n",
		result.Stats.TotalJoined, result.Stats.Filtered, result.Stats.Final, result.CacheHit, elapsed.Seconds())
	if n := len(result.ResolutionLog); n > 0 {
		PrintInfo(result.ResolutionLog[n-1])
	}
}

func saveScreeningCSV(path string, result *contracts.ScreeningResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	if err := report.WriteScreeningCSV(file, result); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
