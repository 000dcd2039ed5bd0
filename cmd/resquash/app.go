package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/resquash/resquash/internal/config"
	"github.com/resquash/resquash/internal/gitx"
	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
	"github.com/resquash/resquash/internal/plan"
	"github.com/resquash/resquash/internal/strategy"
	"github.com/resquash/resquash/internal/ui"
	"github.com/resquash/resquash/internal/validate"
)

// plannerTimeout bounds the AI plan generation call.
const plannerTimeout = 120 * time.Second

// App wires the full pipeline: diff, parse, plan, validate, approve, apply.
type App struct {
	cfg      *config.Config
	logger   logging.Logger
	planPath string
	noAI     bool
}

func newApp(cfg *config.Config, logger logging.Logger, planPath string, noAI bool) *App {
	return &App{cfg: cfg, logger: logger, planPath: planPath, noAI: noAI}
}

func (a *App) run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not determine working directory: %w", err)
	}
	repo, err := gitx.Open(cwd, a.logger)
	if err != nil {
		return err
	}

	base, err := repo.ResolveBaseRef(a.cfg.BaseBranch)
	if err != nil {
		return err
	}

	hunks, err := a.parseChanges(repo, base)
	if err != nil {
		return err
	}
	if len(hunks) == 0 {
		fmt.Println("No changes against " + base + "; nothing to do.")
		return nil
	}
	a.logger.Log("Parsed %d hunks against %s", len(hunks), base)

	p, err := a.buildPlan(hunks)
	if err != nil {
		return err
	}
	warnings := p.Normalize(hunks, a.logger)

	res := validate.Validate(p.Commits, hunks)
	if out := ui.RenderValidation(res.Errors, append(warnings, res.Warnings...)); out != "" {
		fmt.Print(out)
	}
	if !res.IsValid {
		return fmt.Errorf("plan failed validation with %d errors", len(res.Errors))
	}

	approved, err := a.approve(p, hunks)
	if err != nil {
		return err
	}
	if !approved {
		fmt.Println("Plan not applied.")
		return nil
	}

	result := a.apply(repo, hunks, p, base)
	fmt.Print(ui.RenderResult(result))
	if result.IsFailure() {
		return fmt.Errorf("apply failed: %s", result.Message)
	}
	return nil
}

// parseChanges diffs the branch against its merge base with base and
// splits the output into hunks.
func (a *App) parseChanges(repo *gitx.Repo, base string) (map[string]*hunk.Hunk, error) {
	diff, err := repo.Diff(base)
	if err != nil {
		return nil, err
	}
	return hunk.ParseDiff(diff)
}

// buildPlan picks the plan source: an explicit plan file wins, then the AI
// planner, then the file-based heuristic.
func (a *App) buildPlan(hunks map[string]*hunk.Hunk) (*plan.Plan, error) {
	if a.planPath != "" {
		a.logger.Log("Loading plan from %s", a.planPath)
		return plan.Load(a.planPath)
	}

	if !a.noAI && a.cfg.APIKey != "" {
		planner, err := plan.NewPlanner(plan.PlannerConfig{
			APIKey:  a.cfg.APIKey,
			Model:   a.cfg.Model,
			BaseURL: a.cfg.BaseURL,
		}, a.logger)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), plannerTimeout)
		defer cancel()
		p, err := planner.GeneratePlan(ctx, hunks)
		if err != nil {
			a.logger.Log("AI planning failed, falling back to file grouping: %v", err)
			fmt.Fprintf(os.Stderr, "AI planning failed (%v); grouping hunks by file instead.\n", err)
			return plan.GroupByFile(hunks), nil
		}
		return p, nil
	}

	a.logger.Log("Grouping hunks by file (AI planner disabled)")
	return plan.GroupByFile(hunks), nil
}

// approve shows the plan and asks for confirmation. Auto-apply runs and
// non-TTY runs print the plan and proceed.
func (a *App) approve(p *plan.Plan, hunks map[string]*hunk.Hunk) (bool, error) {
	rendered := ui.RenderPlan(p, hunks)
	if a.cfg.AutoApply || !isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Print(rendered)
		return true, nil
	}
	return ui.GetApproval("Review commit plan", rendered)
}

func (a *App) apply(repo *gitx.Repo, hunks map[string]*hunk.Hunk, p *plan.Plan, base string) hunk.Result {
	native := strategy.NewGitNative(repo, hunks, base, a.cfg.AuthorName, a.cfg.AuthorEmail, a.logger)
	legacy := strategy.NewLegacyPatch(repo, hunks, base, a.cfg.AuthorName, a.cfg.AuthorEmail, a.logger)
	chosen := strategy.Pick(a.cfg.Strategy, native, legacy, a.logger)
	a.logger.Log("Applying %d commits with the %s strategy", len(p.Commits), chosen.Name())

	if check := chosen.ValidateEnvironment(); !check.IsSuccess() {
		return check
	}
	return chosen.ApplyCommits(p.Commits)
}
