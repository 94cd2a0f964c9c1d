package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/questionbank/questionbank/internal/auth"
)

// AuthOpsCLI offers operator helpers for credentials and tokens.
type AuthOpsCLI struct {
	settings auth.Settings
	clock    func() time.Time
}

// NewAuthOpsCLI constructs the helper from the token settings in effect.
func NewAuthOpsCLI(settings auth.Settings) *AuthOpsCLI {
	return &AuthOpsCLI{settings: settings, clock: time.Now}
}

// HashPasswordOptions defines the flags of the hash-password command.
type HashPasswordOptions struct {
	Password   string
	Cost       int
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// HashPasswordSummary is the JSON output of hash-password.
type HashPasswordSummary struct {
	Hash string `json:"hash"`
	Cost int    `json:"cost"`
}

// HashPasswordCommand prints a bcrypt digest of the given password. When no
// password flag is set the first line of stdin is used.
func (c *AuthOpsCLI) HashPasswordCommand(opts HashPasswordOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	password := opts.Password
	if password == "" && opts.Stdin != nil {
		raw, err := io.ReadAll(io.LimitReader(opts.Stdin, 1024))
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "hash-password: read stdin: %v\n", err)
			return 1
		}
		password = strings.TrimRight(strings.SplitN(string(raw), "\n", 2)[0], "\r")
	}
	if password == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "hash-password: --password or stdin input is required")
		return 1
	}
	cost := opts.Cost
	if cost == 0 {
		cost = c.settings.BcryptCost
	}
	hasher, err := auth.NewHasher(cost)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "hash-password: %v\n", err)
		return 1
	}
	digest, err := hasher.Hash(password)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "hash-password: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(HashPasswordSummary{Hash: digest, Cost: hasher.Cost()}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "hash-password: encode output: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(opts.Stdout, digest)
	return 0
}

// IssueTokenOptions defines the flags of the issue-token command.
type IssueTokenOptions struct {
	Name       string
	TTL        time.Duration
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IssueTokenSummary is the JSON output of issue-token.
type IssueTokenSummary struct {
	Token     string    `json:"jwt"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueTokenCommand signs a bearer token for name without checking the
// account store. It is meant for smoke tests against a running server.
func (c *AuthOpsCLI) IssueTokenCommand(opts IssueTokenOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	name := auth.NormalizeName(opts.Name)
	if name == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "issue-token: --name is required")
		return 1
	}
	settings := c.settings
	if opts.TTL > 0 {
		settings.TTL = opts.TTL
	}
	codec, err := auth.NewTokenCodec(settings)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "issue-token: %v\n", err)
		return 1
	}
	token, expires, err := codec.Issue(name, c.clock())
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "issue-token: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		summary := IssueTokenSummary{Token: token, TokenType: auth.TokenType, ExpiresAt: expires.UTC()}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "issue-token: encode output: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(opts.Stdout, token)
	return 0
}
