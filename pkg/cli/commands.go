package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gmeeker/fatbuild/pkg/classify"
	"github.com/gmeeker/fatbuild/pkg/config"
	"github.com/gmeeker/fatbuild/pkg/eligibility"
	"github.com/gmeeker/fatbuild/pkg/expand"
	"github.com/gmeeker/fatbuild/pkg/fuse"
	"github.com/gmeeker/fatbuild/pkg/logger"
	"github.com/gmeeker/fatbuild/pkg/merge"
	"github.com/gmeeker/fatbuild/pkg/notifier"
	"github.com/gmeeker/fatbuild/pkg/orchestrator"
	"github.com/gmeeker/fatbuild/pkg/recipe"
	"github.com/gmeeker/fatbuild/pkg/types"
)

func newBuildCmd() *cobra.Command {
	var (
		strictCoverage bool
		parallelism    int
		lipoTool       string
		logFile        string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the full multi-architecture build and merge",
		Long: `Load the request from the config file, build and package each
architecture, and merge the package trees into a universal tree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := config.NewManager().LoadRequest(getConfigPath())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict-coverage") {
				req.StrictCoverage = strictCoverage
			}
			if parallelism > 0 {
				req.Parallelism = parallelism
			}
			return runBuild(cmd, req, lipoTool, logFile)
		},
	}
	cmd.Flags().BoolVar(&strictCoverage, "strict-coverage", false, "fail when a binary is missing for some architectures")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "j", 0, "max concurrent architecture builds (default: one per arch)")
	cmd.Flags().StringVar(&lipoTool, "lipo", "", "path to the lipo tool")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file as well")
	return cmd
}

func runBuild(cmd *cobra.Command, req *types.Request, lipoTool, logFile string) error {
	log := logger.New(logFile, verbosity)
	rec := recipe.NewCommandRecipe(log)
	fuser := &fuse.LipoFuser{Tool: lipoTool}

	o := orchestrator.New(rec, fuser, log)
	if req.Notifications != nil {
		o.SetNotifier(notifier.New(*req.Notifications, log))
	}

	result, err := o.Run(cmd.Context(), req)
	if err != nil {
		printError(fmt.Sprintf("Build failed: %v", err))
		return err
	}

	if !result.Universal {
		printInfo(fmt.Sprintf("%s built (single architecture) in %s", req.Name, result.Duration))
		return nil
	}
	printSuccess(fmt.Sprintf("%s: universal package for %v in %s (%d fused, %d copied)",
		req.Name, req.Archs.Strings(), result.Duration, result.Report.Fused, result.Report.Copied))
	for _, p := range result.Report.PartialBinaries {
		printInfo(fmt.Sprintf("partial coverage: %s", p))
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the request qualifies for multi-arch orchestration",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := config.NewManager().LoadRequest(getConfigPath())
			if err != nil {
				return err
			}
			if ok, reason := eligibility.Check(req); !ok {
				printInfo(fmt.Sprintf("%s: single build (%s)", req.Name, reason))
				return nil
			}
			printSuccess(fmt.Sprintf("%s: eligible for %v", req.Name, req.Archs.Strings()))
			return nil
		},
	}
}

// newMergeCmd merges package trees that were built out of band. The
// per-architecture trees are discovered under <package-root>/archs.
func newMergeCmd() *cobra.Command {
	var (
		strictCoverage bool
		lipoTool       string
	)
	cmd := &cobra.Command{
		Use:   "merge <package-root>",
		Short: "Merge existing per-architecture package trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], strictCoverage, lipoTool)
		},
	}
	cmd.Flags().BoolVar(&strictCoverage, "strict-coverage", false, "fail when a binary is missing for some architectures")
	cmd.Flags().StringVar(&lipoTool, "lipo", "", "path to the lipo tool")
	return cmd
}

func runMerge(cmd *cobra.Command, packageRoot string, strictCoverage bool, lipoTool string) error {
	scratch := expand.ScratchRoot(packageRoot)
	dirEntries, err := os.ReadDir(scratch)
	if err != nil {
		return fmt.Errorf("no per-architecture trees under %s: %w", scratch, err)
	}
	var archs []string
	for _, e := range dirEntries {
		if e.IsDir() {
			archs = append(archs, e.Name())
		}
	}
	sort.Strings(archs)
	if len(archs) < 2 {
		return fmt.Errorf("need at least two architecture trees under %s, found %d", scratch, len(archs))
	}

	req := &types.Request{
		Name:           filepath.Base(packageRoot),
		PackageRoot:    packageRoot,
		StrictCoverage: strictCoverage,
	}
	var contexts []*types.Context
	for _, arch := range archs {
		req.Archs = append(req.Archs, types.Arch(arch))
		contexts = append(contexts, &types.Context{
			Base:   req,
			Config: &types.Request{PackageRoot: expand.ArchRoot(packageRoot, types.Arch(arch))},
			Arch:   types.Arch(arch),
		})
	}

	log := logger.New("", verbosity)
	report, err := merge.NewMerger(&fuse.LipoFuser{Tool: lipoTool}, log).Merge(cmd.Context(), req, contexts)
	if err != nil {
		printError(fmt.Sprintf("Merge failed: %v", err))
		return err
	}
	printSuccess(fmt.Sprintf("merged %v into %s (%d fused, %d copied)", archs, packageRoot, report.Fused, report.Copied))
	return nil
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show how the merger would treat each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			defer w.Flush()
			for _, path := range args {
				kind, err := classify.File(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", path, kind)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fatbuild v%s\n", version)
		},
	}
}
