package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/krxvalue/internal/scheduler"
	"github.com/wonny/krxvalue/internal/scheduler/jobs"
	"github.com/wonny/krxvalue/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스크리닝 캐시 워밍 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/krxvalue scheduler start
  go run ./cmd/krxvalue scheduler list
  go run ./cmd/krxvalue scheduler run screen_warm`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- screen_warm: WARM_SCHEDULE (기본 평일 18:30) 전 시장 기본 조건 스크리닝
  DATABASE_URL 이 있으면 결과를 selection 스키마에 보관합니다.

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== krxvalue Scheduler ===")

	return withScheduler(func(sched *scheduler.Scheduler) error {
		sched.Start()
		defer sched.Stop()

		PrintSuccess("Scheduler started")
		PrintList(sched.GetAllJobs())
		fmt.Println("\nPress Ctrl+C to stop")

		ctx, stop := interruptContext()
		defer stop()
		<-ctx.Done()

		fmt.Println("\nShutting down scheduler...")
		return nil
	})
}

func listJobs(cmd *cobra.Command, args []string) error {
	return withScheduler(func(sched *scheduler.Scheduler) error {
		stats := sched.GetJobStats()

		now := time.Now()
		widths := []int{16, 20, 19}
		PrintTableHeader([]string{"job", "schedule", "next run"}, widths)
		for _, name := range sched.GetAllJobs() {
			next, err := sched.NextRun(name, now)
			if err != nil {
				return err
			}
			PrintTableRow([]string{name, stats[name].Schedule, next.Format("2006-01-02 15:04:05")}, widths)
		}
		return nil
	})
}

func runJob(cmd *cobra.Command, args []string) error {
	return withScheduler(func(sched *scheduler.Scheduler) error {
		PrintInfo(fmt.Sprintf("Running job: %s", args[0]))

		result, err := sched.RunJobSync(cmd.Context(), args[0])
		if err != nil {
			PrintError(err.Error())
			return err
		}

		PrintSuccess(fmt.Sprintf("%s finished in %s (%d attempt(s))",
			result.JobName, result.Duration.Round(time.Millisecond), result.Attempts))
		return nil
	})
}

// showStatus prints this process's run history. A fresh process has none;
// the long-running scheduler logs every run instead.
func showStatus(cmd *cobra.Command, args []string) error {
	return withScheduler(func(sched *scheduler.Scheduler) error {
		stats := sched.GetJobStats()

		widths := []int{16, 6, 8, 8, 19}
		PrintTableHeader([]string{"job", "runs", "success", "failures", "last run"}, widths)
		for _, name := range sched.GetAllJobs() {
			st := stats[name]
			lastRun := "-"
			if st.LastRun != nil {
				lastRun = st.LastRun.Format("2006-01-02 15:04:05")
			}
			PrintTableRow([]string{
				name,
				strconv.Itoa(st.TotalRuns),
				fmt.Sprintf("%.0f%%", st.SuccessRate*100),
				strconv.Itoa(st.FailureCount),
				lastRun,
			}, widths)
		}

		for _, name := range sched.GetAllJobs() {
			history, err := sched.GetJobHistory(name)
			if err != nil {
				return err
			}
			if failed := history.Failures(); len(failed) > 0 {
				last := failed[len(failed)-1]
				PrintWarning(fmt.Sprintf("%s 마지막 실패 (%s): %s", name, last.StartTime.Format("2006-01-02 15:04"), last.Error))
			}
		}
		return nil
	})
}

// withScheduler wires the app, registers jobs and hands the scheduler to fn
func withScheduler(fn func(*scheduler.Scheduler) error) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	return fn(sched)
}

func initApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

// newScheduler registers every job against the wired app
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	// archive stays a nil interface without a database
	var archive jobs.ResultArchive
	if a.archive != nil {
		archive = a.archive
	}

	warm := jobs.NewScreenWarmJob(a.cache, archive, a.cfg.Screening, a.cfg.WarmSchedule, a.log)
	if err := sched.AddJob(warm); err != nil {
		return nil, err
	}

	return sched, nil
}
