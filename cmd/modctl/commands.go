package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/citywatch/citywatch-api/internal/app"
	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/jwt"
	"github.com/citywatch/citywatch-api/internal/pkg/logger"
)

func setupLogging(cctx *cli.Context) error {
	return logger.Init(logger.Config{Level: cctx.String("log-level"), Environment: "cli"})
}

func withEngine(cctx *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cctx.Context
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func operator(cctx *cli.Context) (access.Principal, error) {
	id, err := uuid.Parse(cctx.String("operator"))
	if err != nil {
		return access.Principal{}, fmt.Errorf("invalid --operator: %w", err)
	}
	return access.Principal{ID: id, Role: access.RoleAdmin}, nil
}

func printJSON(cctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(cctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRulesImport(cctx *cli.Context) error {
	p, err := operator(cctx)
	if err != nil {
		return err
	}
	return withEngine(cctx, func(ctx context.Context, a *app.App) error {
		policy := a.Policy
		if file := cctx.String("file"); file != "" {
			if policy, err = config.LoadPolicy(file); err != nil {
				return err
			}
		}
		n, err := a.Escalation.ImportRules(ctx, p, policy.EscalationRules, cctx.Bool("if-empty"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "imported %d rules\n", n)
		return nil
	})
}

func runAuditExport(cctx *cli.Context) error {
	p, err := operator(cctx)
	if err != nil {
		return err
	}
	from, to := cctx.Timestamp("from"), cctx.Timestamp("to")
	return withEngine(cctx, func(ctx context.Context, a *app.App) error {
		key, n, err := a.Audit.Export(ctx, p, from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "exported %d entries to %s\n", n, key)
		return nil
	})
}

func runJobsList(cctx *cli.Context) error {
	p, err := operator(cctx)
	if err != nil {
		return err
	}
	return withEngine(cctx, func(ctx context.Context, a *app.App) error {
		jobs, err := a.Actions.ListJobs(ctx, p, enforcement.JobStatus(cctx.String("status")), cctx.Int("limit"), 0)
		if err != nil {
			return err
		}
		return printJSON(cctx, jobs)
	})
}

func runJobsRedrive(cctx *cli.Context) error {
	p, err := operator(cctx)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(cctx.Args().First())
	if err != nil {
		return fmt.Errorf("need a job id: %w", err)
	}
	return withEngine(cctx, func(ctx context.Context, a *app.App) error {
		job, err := a.Actions.Redrive(ctx, p, jobID)
		if err != nil {
			return err
		}
		return printJSON(cctx, job)
	})
}

func runReferralsSweep(cctx *cli.Context) error {
	return withEngine(cctx, func(ctx context.Context, a *app.App) error {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := a.Court.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "expired %d referrals\n", n)
		return nil
	})
}

func runMintToken(cctx *cli.Context) error {
	role := access.Role(cctx.String("role"))
	if access.ParseRole(string(role)) != role {
		return fmt.Errorf("unknown role %q", role)
	}
	userID := uuid.New()
	if raw := cctx.String("user"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		userID = id
	}

	cfg := config.Load()
	token, err := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL).GenerateAccessToken(userID, string(role), false)
	if err != nil {
		return err
	}
	log.Debug().Str("user_id", userID.String()).Msg("Token minted")
	fmt.Fprintln(cctx.App.Writer, token)
	return nil
}
