// Package orchestrator drives a multi-architecture build end to end:
// eligibility gate, per-architecture expansion, parallel build and
// package steps, and the final merge into a universal package tree.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gmeeker/fatbuild/pkg/eligibility"
	"github.com/gmeeker/fatbuild/pkg/expand"
	"github.com/gmeeker/fatbuild/pkg/fuse"
	"github.com/gmeeker/fatbuild/pkg/logger"
	"github.com/gmeeker/fatbuild/pkg/merge"
	"github.com/gmeeker/fatbuild/pkg/recipe"
	"github.com/gmeeker/fatbuild/pkg/types"
)

// Notifier receives run outcomes. notifier.BuildNotifier implements it.
type Notifier interface {
	NotifySuccess(name string, archs []types.Arch, duration time.Duration)
	NotifyFailure(name string, err error)
}

// Result describes a completed run.
type Result struct {
	RunID     string
	Universal bool
	Archs     []types.Arch
	Report    *merge.Report
	Duration  time.Duration
}

// Orchestrator coordinates recipe invocations and the artifact merge.
type Orchestrator struct {
	recipe   recipe.Recipe
	fuser    fuse.Fuser
	logger   logger.Logger
	notifier Notifier
}

// New creates an orchestrator for the given recipe and fuser.
func New(r recipe.Recipe, f fuse.Fuser, log logger.Logger) *Orchestrator {
	return &Orchestrator{recipe: r, fuser: f, logger: log}
}

// SetNotifier attaches an outcome notifier. Nil disables notifications.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// Run executes the request. Ineligible requests fall through to a single
// in-place build; eligible ones are expanded, built per architecture, and
// merged into req.PackageRoot.
func (o *Orchestrator) Run(ctx context.Context, req *types.Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	log := o.logger.WithScope(req.Name)
	log.Info("Starting run", logger.WithField("run_id", runID))

	if ok, reason := eligibility.Check(req); !ok {
		log.Info("Multi-arch orchestration not applicable, building in place",
			logger.WithField("reason", reason))
		return o.runSingle(ctx, req, runID, start)
	}

	contexts, err := expand.Expand(req)
	if err != nil {
		if errors.Is(err, types.ErrNotCloneable) {
			log.Warn("Request not cloneable, building in place",
				logger.WithField("error", err))
			return o.runSingle(ctx, req, runID, start)
		}
		return nil, err
	}

	if err := o.buildAll(ctx, log, req, contexts); err != nil {
		o.cleanupScratch(log, req, true)
		o.notifyFailure(req.Name, err)
		return nil, err
	}

	log.Info("All architectures built, merging package trees",
		logger.WithField("archs", req.Archs.Strings()))
	merger := merge.NewMerger(o.fuser, log)
	report, err := merger.Merge(ctx, req, contexts)
	if err != nil {
		// A half-written universal tree must never be left as the
		// advertised output.
		if rmErr := os.RemoveAll(req.PackageRoot); rmErr != nil {
			log.Warn("Failed to remove partial merge output",
				logger.WithField("path", req.PackageRoot),
				logger.WithField("error", rmErr))
		}
		o.cleanupScratch(log, req, true)
		o.notifyFailure(req.Name, err)
		return nil, err
	}

	// Per-arch build trees survive for incremental rebuilds; the merged
	// package tree supersedes the per-arch ones.
	o.cleanupScratch(log, req, false)

	duration := time.Since(start)
	log.Success("Universal package ready",
		logger.WithField("fused", report.Fused),
		logger.WithField("copied", report.Copied),
		logger.WithField("duration", duration.String()))
	if o.notifier != nil {
		o.notifier.NotifySuccess(req.Name, req.Archs, duration)
	}
	return &Result{
		RunID:     runID,
		Universal: true,
		Archs:     append([]types.Arch(nil), req.Archs...),
		Report:    report,
		Duration:  duration,
	}, nil
}

// buildAll runs build then package for every context, bounded by the
// request's parallelism.
func (o *Orchestrator) buildAll(ctx context.Context, log logger.Logger, req *types.Request, contexts []*types.Context) error {
	sg, gctx := NewSafeGroup(ctx, log)
	limit := req.Parallelism
	if limit <= 0 {
		limit = len(contexts)
	}
	sg.SetLimit(limit)

	for _, bc := range contexts {
		bc := bc
		sg.Go(func() error {
			archLog := log.WithScope(string(bc.Arch))
			archLog.Info("Building architecture")
			if err := o.recipe.Build(gctx, bc); err != nil {
				return &recipe.BuildError{Arch: bc.Arch, Err: err}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			archLog.Info("Packaging architecture")
			if err := o.recipe.Package(gctx, bc); err != nil {
				return &recipe.PackageError{Arch: bc.Arch, Err: err}
			}
			archLog.Success("Architecture complete")
			return nil
		})
	}
	return sg.Wait()
}

// runSingle performs the non-orchestrated fallback: one build and package
// directly against the request's own roots.
func (o *Orchestrator) runSingle(ctx context.Context, req *types.Request, runID string, start time.Time) (*Result, error) {
	arch := types.Arch("native")
	if len(req.Archs) > 0 {
		arch = req.Archs[0]
	}
	bc := &types.Context{Base: req, Config: req, Arch: arch, DisplayName: req.Name}

	if err := o.recipe.Build(ctx, bc); err != nil {
		err = &recipe.BuildError{Arch: arch, Err: err}
		o.notifyFailure(req.Name, err)
		return nil, err
	}
	if err := o.recipe.Package(ctx, bc); err != nil {
		err = &recipe.PackageError{Arch: arch, Err: err}
		o.notifyFailure(req.Name, err)
		return nil, err
	}

	duration := time.Since(start)
	if o.notifier != nil {
		o.notifier.NotifySuccess(req.Name, req.Archs, duration)
	}
	return &Result{
		RunID:     runID,
		Universal: false,
		Archs:     append([]types.Arch(nil), req.Archs...),
		Duration:  duration,
	}, nil
}

// cleanupScratch removes the per-arch package scratch tree, and the build
// scratch tree as well when a run failed. Failed runs leave no
// half-finished artifacts behind.
func (o *Orchestrator) cleanupScratch(log logger.Logger, req *types.Request, failed bool) {
	roots := []string{expand.ScratchRoot(req.PackageRoot)}
	if failed {
		roots = append(roots, expand.ScratchRoot(req.BuildRoot))
	}
	for _, root := range roots {
		if err := os.RemoveAll(root); err != nil {
			log.Warn("Failed to remove scratch tree",
				logger.WithField("path", root),
				logger.WithField("error", err))
		}
	}
}

func (o *Orchestrator) notifyFailure(name string, err error) {
	if o.notifier != nil {
		o.notifier.NotifyFailure(name, err)
	}
}
