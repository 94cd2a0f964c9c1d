// Package cli implements the operator subcommands of the questionbank binary.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/questionbank/questionbank/internal/auth"
)

// Env carries what subcommands need from the process.
type Env struct {
	Settings  auth.Settings
	RedisAddr string
	Retention time.Duration
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

// Commands lists the subcommand names accepted by Run.
var Commands = []string{"hash-password", "issue-token", "jobs"}

// IsCommand reports whether name selects a subcommand instead of the server.
func IsCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// Run executes the subcommand in args[0] and returns the process exit code.
func Run(ctx context.Context, env Env, args []string) int {
	if env.Stdin == nil {
		env.Stdin = os.Stdin
	}
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if len(args) == 0 {
		usage(env.Stderr)
		return 2
	}
	ops := NewAuthOpsCLI(env.Settings)
	switch args[0] {
	case "hash-password":
		fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
		fs.SetOutput(env.Stderr)
		opts := HashPasswordOptions{Stdin: env.Stdin, Stdout: env.Stdout, Stderr: env.Stderr}
		fs.StringVar(&opts.Password, "password", "", "plain password (read from stdin when empty)")
		fs.IntVar(&opts.Cost, "cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.HashPasswordCommand(opts)
	case "issue-token":
		fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
		fs.SetOutput(env.Stderr)
		opts := IssueTokenOptions{Stdout: env.Stdout, Stderr: env.Stderr}
		fs.StringVar(&opts.Name, "name", "", "token subject")
		fs.DurationVar(&opts.TTL, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.IssueTokenCommand(opts)
	case "jobs":
		return runJobs(ctx, env, args[1:])
	default:
		usage(env.Stderr)
		return 2
	}
}

func runJobs(ctx context.Context, env Env, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(env.Stderr, "jobs: expected \"trigger <task>\" or \"stats\"")
		return 2
	}
	jc := NewJobsCLI(env.RedisAddr, env.Retention)
	defer func() { _ = jc.Close() }()
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(env.Stderr, "jobs trigger: task name is required")
			return 2
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintf(env.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(env.Stdout, "enqueued %s as %s\n", info.Type, info.ID)
		return 0
	case "stats":
		stats, err := jc.InspectQueue()
		if err != nil {
			_, _ = fmt.Fprintf(env.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		if err := json.NewEncoder(env.Stdout).Encode(stats); err != nil {
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintf(env.Stderr, "jobs: unknown action %s\n", args[0])
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: questionbank [hash-password [--password P] [--cost N] [--json]]")
	_, _ = fmt.Fprintln(w, "                    [issue-token --name NAME [--ttl D] [--json]]")
	_, _ = fmt.Fprintln(w, "                    [jobs trigger audit:prune | jobs stats]")
}
