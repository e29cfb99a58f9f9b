package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rediacc/desktop/internal/credential"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/lock"
	"github.com/rediacc/desktop/internal/session"
	"github.com/rediacc/desktop/internal/syncer"
	"github.com/rediacc/desktop/internal/ui"
	"github.com/rediacc/desktop/pkg/sshutil"
)

// syncDialTimeout bounds the SSH connection attempt for sync operations.
const syncDialTimeout = 15 * time.Second

// Sync command flags, shared by upload and download.
var (
	syncLocalFlag       string
	syncMachineFlag     string
	syncRepositoryFlag  string
	syncMirrorFlag      bool
	syncExcludeFlags    []string
	syncExcludeFromFlag string
	syncVerifyFlag      bool
	syncConfirmFlag     bool
	syncYesFlag         bool
	syncWorkersFlag     int
)

// syncCmd groups the two transfer directions.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Transfer files between a local directory and a repository",
	Long: `Sync files between a local directory and a repository's mount path
on its machine.

Direction is explicit: "upload" pushes local changes to the repository,
"download" pulls the repository's state down. A plan is computed first;
with --confirm the plan is previewed and nothing is applied. Mirror mode
deletes destination entries absent from the source, but only after an
explicit confirmation (--confirm preview or --yes).

Examples:
  rediacc sync upload --local ./src --machine web-1 --repository billing
  rediacc sync upload --local ./src --machine web-1 --repository billing --mirror --confirm
  rediacc sync download --local ./backup --machine web-1 --repository billing --verify`,
}

var syncUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push local files to the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncCommand(directionUpload)
	},
}

var syncDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Pull repository files to the local directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncCommand(directionDownload)
	},
}

type syncDirection int

const (
	directionUpload syncDirection = iota
	directionDownload
)

func init() {
	for _, cmd := range []*cobra.Command{syncUploadCmd, syncDownloadCmd} {
		cmd.Flags().StringVar(&syncLocalFlag, "local", "", "local directory (required)")
		cmd.Flags().StringVar(&syncMachineFlag, "machine", "", "target machine name (required)")
		cmd.Flags().StringVar(&syncRepositoryFlag, "repository", "", "target repository name (required)")
		cmd.Flags().BoolVar(&syncMirrorFlag, "mirror", false, "delete destination entries absent from source")
		cmd.Flags().StringArrayVar(&syncExcludeFlags, "exclude", nil, "exclusion pattern (repeatable)")
		cmd.Flags().StringVar(&syncExcludeFromFlag, "exclude-from", "", "file with exclusion patterns, one per line")
		cmd.Flags().BoolVar(&syncVerifyFlag, "verify", false, "checksum entries after transfer")
		cmd.Flags().BoolVar(&syncConfirmFlag, "confirm", false, "preview the plan without applying it")
		cmd.Flags().BoolVar(&syncYesFlag, "yes", false, "apply mirror deletes without interactive confirmation")
		cmd.Flags().IntVar(&syncWorkersFlag, "workers", 0, "concurrent transfer workers (default 4)")
	}

	syncCmd.AddCommand(syncUploadCmd)
	syncCmd.AddCommand(syncDownloadCmd)
	rootCmd.AddCommand(syncCmd)
}

// validateSyncFlags checks the required sync flags are present.
func validateSyncFlags(local, machine, repository string) error {
	if local == "" {
		return errors.New(errors.ErrConfig,
			"No local directory specified",
			"Pass --local with the directory to sync")
	}
	if machine == "" {
		return errors.New(errors.ErrConfig,
			"No machine specified",
			"Pass --machine with the target machine name")
	}
	if repository == "" {
		return errors.New(errors.ErrConfig,
			"No repository specified",
			"Pass --repository with the target repository name")
	}
	return nil
}

// mirrorApproved decides whether a plan containing deletes may proceed.
// Non-interactive approval (--yes) always wins; otherwise the user is
// prompted after seeing the preview. Plans without deletes need no approval.
func mirrorApproved(plan *syncer.Plan, yes bool, prompt func(string) (bool, error)) (bool, error) {
	if !plan.HasDeletes() {
		return true, nil
	}
	if yes {
		return true, nil
	}
	ok, err := prompt(fmt.Sprintf("Mirror mode will delete %d destination entries. Continue?", countDeletes(plan)))
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrPlan,
			"Could not confirm mirror deletion",
			"Re-run with --yes to approve deletes non-interactively")
	}
	return ok, nil
}

func countDeletes(plan *syncer.Plan) int {
	_, _, deletes := plan.Changes()
	return deletes
}

func syncCommand(direction syncDirection) error {
	if err := validateSyncFlags(syncLocalFlag, syncMachineFlag, syncRepositoryFlag); err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	team, err := requireTeam(sess)
	if err != nil {
		return err
	}

	if info, err := os.Stat(syncLocalFlag); err != nil || !info.IsDir() {
		return errors.New(errors.ErrConfig,
			"Local path is not a directory: "+syncLocalFlag,
			"Pass an existing directory to --local")
	}

	exclusions, err := syncer.CompileExclusions(syncExcludeFlags, syncExcludeFromFlag)
	if err != nil {
		return err
	}

	client := newClient(sess)
	broker := session.NewBroker(client, credential.NewManager(sess.Log), masterPassword(), sess.Log)

	target, staged, err := broker.MountPath(team, syncMachineFlag, syncRepositoryFlag, sess.Settings.Dev)
	if err != nil {
		return err
	}
	defer staged.Release()

	spinner := ui.NewSpinner(fmt.Sprintf("Connecting to %s", syncMachineFlag))
	spinner.Start()
	conn, err := sshutil.Dial(target.SSH, syncDialTimeout)
	spinner.Stop()
	if err != nil {
		return err
	}
	defer conn.Close()

	// One repository, one writer at a time.
	repoLock, err := lock.Acquire(conn, lock.DefaultConfig(), syncRepositoryFlag)
	if err != nil {
		return err
	}
	defer repoLock.Release()

	local := syncer.NewLocalEndpoint(syncLocalFlag)
	remote := syncer.NewRemoteEndpoint(conn, target.Workdir)

	req := syncer.Request{
		Exclusions: exclusions,
		Mirror:     syncMirrorFlag,
		Verify:     syncVerifyFlag,
		DryRun:     syncConfirmFlag,
		Workers:    syncWorkersFlag,
	}
	if direction == directionUpload {
		req.Source, req.Dest = local, remote
	} else {
		req.Source, req.Dest = remote, local
	}

	plan, err := syncer.PlanOnly(req)
	if err != nil {
		return err
	}

	renderer := ui.NewPlanRenderer()
	fmt.Print(renderer.RenderPlan(plan))

	if !syncConfirmFlag {
		approved, err := mirrorApproved(plan, syncYesFlag, ui.Confirm)
		if err != nil {
			return err
		}
		if !approved {
			return errors.New(errors.ErrPlan,
				"Mirror deletion not confirmed",
				"Re-run with --confirm to preview, or --yes to approve deletes")
		}
	}

	report := syncer.NewExecutor(req.Source, req.Dest, sess.Log).Execute(plan, syncer.ExecOptions{
		DryRun:  req.DryRun,
		Verify:  req.Verify,
		Workers: req.Workers,
	})

	fmt.Print(renderer.RenderReport(report))

	if !report.Success() {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("%d entries failed to sync", len(report.Failures())),
			"See the per-entry errors above; re-run to retry failed entries")
	}
	return nil
}
