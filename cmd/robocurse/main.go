// Command robocurse runs the checkpointed directory-replication
// orchestrator described in SPEC_FULL.md. The root command performs one
// replication run directly, mirroring the teacher's migratekit root
// command rather than hiding the run behind a "run" subcommand; a
// `schedule` subcommand wraps the Windows Task Scheduler integration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"
	"gopkg.in/yaml.v2"

	"github.com/robocurse/robocurse/internal/checkpoint"
	"github.com/robocurse/robocurse/internal/config"
	"github.com/robocurse/robocurse/internal/copier"
	"github.com/robocurse/robocurse/internal/health"
	"github.com/robocurse/robocurse/internal/joblog"
	"github.com/robocurse/robocurse/internal/mount"
	"github.com/robocurse/robocurse/internal/orchestrator"
	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/scanner"
	"github.com/robocurse/robocurse/internal/state"
	"github.com/robocurse/robocurse/internal/statusapi"
	"github.com/robocurse/robocurse/internal/vss"
)

const tickInterval = 250 * time.Millisecond

// mismatchSeverityOpt lets --mismatch-severity be typo-checked at parse
// time instead of failing deep inside config validation (SPEC_FULL.md
// §1 "[ADDED]" CLI surface), the same enumflag.Flag idiom the teacher
// uses for --disk-bus-type and --compression-method.
type mismatchSeverityOpt enumflag.Flag

const (
	severityWarning mismatchSeverityOpt = iota
	severityError
	severitySuccess
)

var mismatchSeverityIds = map[mismatchSeverityOpt][]string{
	severityWarning: {"warning"},
	severityError:   {"error"},
	severitySuccess: {"success"},
}

func (m mismatchSeverityOpt) toState() state.MismatchSeverity {
	switch m {
	case severityError:
		return state.MismatchError
	case severitySuccess:
		return state.MismatchSuccess
	default:
		return state.MismatchWarning
	}
}

var (
	cfgPath          string
	headless         bool
	dryRun           bool
	ignoreCheckpoint bool
	testRemoteServer string
	setCopierPath    string
	statusAddr       string
	mismatchOverride mismatchSeverityOpt = severityWarning
)

var rootCmd = &cobra.Command{
	Use:   "robocurse",
	Short: "Checkpointed, chunked directory replication orchestrator",
	RunE:  runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "robocurse.json", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Suppress the interactive progress bar and run unattended")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Run the copier in list-only mode (/L): log what would be copied without copying anything")
	rootCmd.PersistentFlags().BoolVar(&ignoreCheckpoint, "ignore-checkpoint", false, "Start fresh, ignoring any existing checkpoint file")
	rootCmd.PersistentFlags().StringVar(&testRemoteServer, "test-remote", "", "Check connectivity to a remote VSS management agent and exit")
	rootCmd.PersistentFlags().StringVar(&setCopierPath, "set-copier-path", "", "Resolve and persist an explicit copier executable path into the config, then exit")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "127.0.0.1:9191", "Loopback address for the read-only status API (empty disables it)")
	rootCmd.PersistentFlags().Var(
		enumflag.New(&mismatchOverride, "mismatch-severity", mismatchSeverityIds, enumflag.EnumCaseInsensitive),
		"mismatch-severity",
		"Override every profile's mismatch severity for this run (warning|error|success)",
	)

	rootCmd.AddCommand(scheduleCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if testRemoteServer != "" {
		return runTestRemote(cmd.Context())
	}

	cfgFile, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if setCopierPath != "" {
		return runSetCopierPath(cfgFile)
	}

	if cmd.Flags().Changed("mismatch-severity") {
		applyMismatchOverride(cfgFile, mismatchOverride.toState())
	}

	if err := checkPlatformSupport(cfgFile); err != nil {
		return err
	}

	resolvedCopier, err := copier.Locate(cfgFile.Global.CopierPath)
	if err != nil {
		return err
	}

	stateDir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, "main", "cannot create state directory", err)
	}

	vssRegistry, err := vss.OpenRegistry(filepath.Join(stateDir, "vss-active.json"))
	if err != nil {
		return err
	}
	mountRegistry, err := mount.OpenRegistry(filepath.Join(stateDir, "robocurse-mappings-active.json"))
	if err != nil {
		return err
	}
	cpStore := checkpoint.NewStore(filepath.Join(stateDir, "robocurse-checkpoint.json"))
	healthWriter := health.NewWriter(
		filepath.Join(stateDir, "robocurse-health.json"),
		time.Duration(cfgFile.Global.HealthCheckIntervalSeconds)*time.Second,
	)
	jobs, err := joblog.New(filepath.Join(stateDir, "robocurse-jobs.log"))
	if err != nil {
		return err
	}
	defer jobs.Close()

	runState := state.NewRunState(cfgFile.Profiles)

	var bar *progressReporter
	if !headless {
		bar = newProgressReporter()
	}

	orchCfg := orchestrator.Config{
		StateDir:         stateDir,
		CopierPath:       resolvedCopier,
		MaxConcurrent:    cfgFile.Global.MaxConcurrentJobs,
		BandwidthMbps:    cfgFile.Global.BandwidthLimitMbps,
		ThreadsPerJob:    cfgFile.Global.ThreadsPerJob,
		IgnoreCheckpoint: ignoreCheckpoint,
		DryRun:           dryRun,
		CheckpointEvery:  int64(cfgFile.Global.CheckpointSaveFrequency),
		HealthInterval:   time.Duration(cfgFile.Global.HealthCheckIntervalSeconds) * time.Second,
		MaxChunkRetries:  cfgFile.Global.RetryCount,
		RetryBase:        time.Duration(cfgFile.Global.RetryBaseWaitSeconds) * time.Second,
		RetryMultiplier:  cfgFile.Global.RetryMultiplier,
		RetryMax:         time.Duration(cfgFile.Global.RetryMaxWaitSeconds) * time.Second,
		ScanCacheSize:    4096,
		ScanConcurrency:  4,
	}

	callbacks := orchestrator.Callbacks{
		OnChunkComplete: func(c *state.Chunk) {
			log.WithFields(log.Fields{"component": "main", "chunk_id": c.ChunkId, "status": c.Status}).
				Debug("chunk finished")
		},
		OnProfileComplete: func(r state.ProfileResult) {
			log.WithFields(log.Fields{
				"component":    "main",
				"profile":      r.ProfileName,
				"files_copied": r.FilesCopied,
				"bytes_copied": r.BytesCopied,
				"failed":       r.ChunksFailed,
			}).Info("profile finished")
		},
		OnSessionEnd: func() {
			log.WithField("component", "main").Info("session ended")
		},
	}
	if bar != nil {
		callbacks.OnProgress = bar.update
	}

	orch := orchestrator.New(orchCfg, runState, callbacks,
		scanner.New(orchCfg.ScanCacheSize, orchCfg.ScanConcurrency),
		vss.NewManager(vssRegistry),
		mount.NewManager(mountRegistry),
		cpStore, healthWriter, jobs,
		copier.NewRunner(resolvedCopier),
	)

	var statusSrv *statusapi.Server
	if statusAddr != "" {
		statusSrv = statusapi.New(statusAddr, runState, filepath.Join(stateDir, "robocurse-health.json"))
		statusSrv.Start()
	}

	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		log.WithField("component", "main").WithError(err).Warn("configuration file watcher not started")
	} else {
		watcherStop := make(chan struct{})
		defer close(watcherStop)
		go watcher.Run(watcherStop)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.WithField("component", "main").Info("stop requested, draining in-flight jobs")
		orch.RequestStop()
	}()

	if err := orch.Start(ctx); err != nil {
		return err
	}

	for !orch.Done() {
		orch.Tick(ctx)
		time.Sleep(tickInterval)
	}

	if bar != nil {
		bar.finish()
	}
	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = statusSrv.Stop(shutdownCtx)
		cancel()
	}

	if orch.HadFailures() {
		return roboerr.New(roboerr.CopierRetryable, "main", "one or more chunks failed during this run")
	}
	return nil
}

// runTestRemote performs a credential-free reachability check against a
// remote VSS management agent (spec §6 "--test-remote <server>").
func runTestRemote(ctx context.Context) error {
	client := vss.NewRemoteClient()
	if err := client.Ping(ctx, testRemoteServer); err != nil {
		fmt.Printf("unreachable: %s: %v\n", testRemoteServer, err)
		return err
	}
	fmt.Printf("reachable: %s\n", testRemoteServer)
	return nil
}

// runSetCopierPath resolves override against the filesystem/PATH and
// writes it back into the loaded config file as the new default
// (spec §6 "--set-copier-path <path>").
func runSetCopierPath(cfgFile *config.File) error {
	resolved, err := copier.Locate(setCopierPath)
	if err != nil {
		return err
	}
	cfgFile.Global.CopierPath = resolved
	if err := saveConfigFile(cfgPath, cfgFile); err != nil {
		return err
	}
	fmt.Printf("copier path set to %s\n", resolved)
	return nil
}

func saveConfigFile(path string, f *config.File) error {
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, "main", "cannot encode config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, "main", "cannot write config", err)
	}
	return nil
}

func applyMismatchOverride(cfgFile *config.File, severity state.MismatchSeverity) {
	for _, p := range cfgFile.Profiles {
		p.MismatchSeverityOverride = severity
	}
}

// checkPlatformSupport rejects a run on a non-Windows host when any
// profile requires shadow copies or UNC drive mounting, since the
// build-tagged fallbacks for those concerns are deliberately permissive
// stand-ins for testing rather than real implementations (spec §6 exit
// code 4).
func checkPlatformSupport(cfgFile *config.File) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	for _, p := range cfgFile.Profiles {
		if p.UseVSS || strings.HasPrefix(p.Source, `\\`) || strings.HasPrefix(p.Destination, `\\`) {
			return roboerr.New(roboerr.UnsupportedPlatform, "main",
				fmt.Sprintf("profile %q requires VSS or UNC mounting, unsupported on %s", p.Name, runtime.GOOS))
		}
	}
	return nil
}

// progressReporter adapts the teacher's sna/progress.DataProgressBar to
// a run-wide chunk count instead of a single transfer's byte count,
// since one run can span many chunks across many profiles.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter() *progressReporter {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("replicating"),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &progressReporter{bar: bar}
}

func (p *progressReporter) update(s state.Snapshot) {
	total := s.CompletedCount + s.SkippedCount + int64(s.FailedCount) + int64(s.ChunksPending) + int64(s.ChunksActive)
	if total > 0 {
		_ = p.bar.ChangeMax64(total)
	}
	_ = p.bar.Set64(s.CompletedCount + s.SkippedCount)
	p.bar.Describe(fmt.Sprintf("replicating %s", s.CurrentProfileName))
}

func (p *progressReporter) finish() {
	_ = p.bar.Finish()
	fmt.Fprint(os.Stderr, "\n")
}

func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case roboerr.Is(err, roboerr.ConfigurationInvalid):
		return 2
	case roboerr.Is(err, roboerr.CopierNotFound):
		return 3
	case roboerr.Is(err, roboerr.UnsupportedPlatform):
		return 4
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithField("component", "main").WithError(err).Error("run failed")
		os.Exit(exitCodeForError(err))
	}
}
