// modctl is the operator CLI for the moderation engine.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("modctl failed")
	}
}

func newCLI() *cli.App {
	operatorFlag := &cli.StringFlag{
		Name:     "operator",
		Usage:    "admin user id recorded as the actor in the audit ledger",
		EnvVars:  []string{"MODCTL_OPERATOR"},
		Required: true,
	}

	app := &cli.App{
		Name:  "modctl",
		Usage: "operate the CityWatch moderation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setupLogging,
	}
	app.Commands = []*cli.Command{
		{
			Name:  "rules",
			Usage: "escalation rule maintenance",
			Subcommands: []*cli.Command{
				{
					Name:  "import",
					Usage: "create escalation rules from the policy file",
					Flags: []cli.Flag{
						operatorFlag,
						&cli.StringFlag{Name: "file", Usage: "policy YAML; defaults to POLICY_FILE"},
						&cli.BoolFlag{Name: "if-empty", Usage: "skip when any rule exists"},
					},
					Action: runRulesImport,
				},
			},
		},
		{
			Name:  "audit",
			Usage: "audit ledger tools",
			Subcommands: []*cli.Command{
				{
					Name:  "export",
					Usage: "archive ledger entries in a time range",
					Flags: []cli.Flag{
						operatorFlag,
						&cli.TimestampFlag{Name: "from", Layout: "2006-01-02", Required: true},
						&cli.TimestampFlag{Name: "to", Layout: "2006-01-02", Required: true},
					},
					Action: runAuditExport,
				},
			},
		},
		{
			Name:  "jobs",
			Usage: "enforcement outbox jobs",
			Subcommands: []*cli.Command{
				{
					Name:  "list",
					Usage: "list jobs, optionally by status",
					Flags: []cli.Flag{
						operatorFlag,
						&cli.StringFlag{Name: "status", Usage: "pending, done or failed"},
						&cli.IntFlag{Name: "limit", Value: 50},
					},
					Action: runJobsList,
				},
				{
					Name:      "redrive",
					Usage:     "requeue a failed job",
					ArgsUsage: "<job-id>",
					Flags:     []cli.Flag{operatorFlag},
					Action:    runJobsRedrive,
				},
			},
		},
		{
			Name:  "referrals",
			Usage: "court referrals",
			Subcommands: []*cli.Command{
				{
					Name:   "sweep",
					Usage:  "expire overdue referrals once",
					Action: runReferralsSweep,
				},
			},
		},
		{
			Name:  "mint-token",
			Usage: "issue an access token for testing and service accounts",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Usage: "user id; random when empty"},
				&cli.StringFlag{Name: "role", Value: "officer"},
			},
			Action: runMintToken,
		},
	}
	return app
}
