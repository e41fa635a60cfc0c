package recipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gmeeker/fatbuild/pkg/logger"
	"github.com/gmeeker/fatbuild/pkg/types"
)

// CommandRecipe runs the configured shell commands as the build and
// package procedures. The effective architecture and output roots are
// exported to the command through FATBUILD_* environment variables;
// everything else about the command is opaque.
type CommandRecipe struct {
	Logger logger.Logger
}

// NewCommandRecipe creates a command-driven recipe.
func NewCommandRecipe(log logger.Logger) *CommandRecipe {
	return &CommandRecipe{Logger: log}
}

// Build runs the configured build command in the context's build root.
func (r *CommandRecipe) Build(ctx context.Context, bc *types.Context) error {
	if bc.Config.BuildCommand == "" {
		return fmt.Errorf("no build command configured for %s", bc.DisplayName)
	}
	return r.run(ctx, bc, "build", bc.Config.BuildCommand)
}

// Package runs the configured package command in the context's build root.
func (r *CommandRecipe) Package(ctx context.Context, bc *types.Context) error {
	if bc.Config.PackageCommand == "" {
		return fmt.Errorf("no package command configured for %s", bc.DisplayName)
	}
	return r.run(ctx, bc, "package", bc.Config.PackageCommand)
}

func (r *CommandRecipe) run(ctx context.Context, bc *types.Context, step, command string) error {
	startTime := time.Now()

	if err := os.MkdirAll(bc.BuildRoot(), 0755); err != nil {
		return fmt.Errorf("failed to create build root: %w", err)
	}
	if err := os.MkdirAll(bc.PackageRoot(), 0755); err != nil {
		return fmt.Errorf("failed to create package root: %w", err)
	}

	logFile, err := r.prepareLogFile(bc)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn(fmt.Sprintf("Failed to create log file: %v", err))
		}
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	r.logToFile(logFile, fmt.Sprintf("\n=== %s started at %s ===\n", step, timestamp))
	r.logToFile(logFile, fmt.Sprintf("Executing: %s\n", command))

	if r.Logger != nil {
		r.Logger.Info(fmt.Sprintf("Running %s step", step),
			logger.WithField("recipe", bc.DisplayName))
	}

	cmd := createCommand(ctx, command)
	cmd.Dir = bc.BuildRoot()
	cmd.Env = r.buildEnvironment(bc)

	var outputBuffer bytes.Buffer
	var multiWriter io.Writer = &outputBuffer
	if logFile != nil {
		multiWriter = io.MultiWriter(&outputBuffer, logFile)
	}
	cmd.Stdout = multiWriter
	cmd.Stderr = multiWriter

	err = cmd.Run()
	output := outputBuffer.Bytes()
	duration := time.Since(startTime)

	if err != nil {
		if r.Logger != nil {
			r.Logger.Error(fmt.Sprintf("%s step failed", step),
				logger.WithField("recipe", bc.DisplayName),
				logger.WithField("error", err))
		}
		r.logToFile(logFile, fmt.Sprintf("\n=== %s FAILED after %s ===\n", step, duration))
		return fmt.Errorf("%s command failed: %w\n%s", step, err, output)
	}

	if r.Logger != nil {
		r.Logger.Success(fmt.Sprintf("%s step completed in %s", step, duration),
			logger.WithField("recipe", bc.DisplayName))
		if len(output) > 0 {
			r.Logger.Debug("Command output", logger.WithField("output", string(output)))
		}
	}
	r.logToFile(logFile, fmt.Sprintf("\n=== %s SUCCEEDED after %s ===\n", step, duration))

	return nil
}

// buildEnvironment merges the process environment, the request's
// environment and the per-architecture overrides.
func (r *CommandRecipe) buildEnvironment(bc *types.Context) []string {
	env := os.Environ()
	for k, v := range bc.Config.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	env = append(env,
		fmt.Sprintf("FATBUILD_ARCH=%s", bc.Arch),
		fmt.Sprintf("FATBUILD_BUILD_ROOT=%s", bc.BuildRoot()),
		fmt.Sprintf("FATBUILD_PACKAGE_ROOT=%s", bc.PackageRoot()),
	)
	return env
}

// createCommand creates an exec.Cmd from a command string
func createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.Contains(command, "&&") || strings.Contains(command, "||") ||
		strings.Contains(command, "|") || strings.Contains(command, ";") ||
		strings.Contains(command, "$") {
		// Complex command - use shell
		return exec.CommandContext(ctx, "sh", "-c", command)
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func (r *CommandRecipe) prepareLogFile(bc *types.Context) (*os.File, error) {
	logDir := bc.LogDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := string(bc.Arch)
	if name == "" {
		name = bc.Base.Name
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%s.log", name))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return logFile, nil
}

func (r *CommandRecipe) logToFile(logFile *os.File, message string) {
	if logFile != nil {
		logFile.WriteString(message)
	}
}
