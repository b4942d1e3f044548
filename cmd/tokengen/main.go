// Package main provides a CLI tool for minting tokens against a local
// shopcore instance. It reads the same configuration as the server, so the
// signing key, issuer and audience match whatever the server would accept.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	jwttoken "shopcore/internal/jwt_token"
	"shopcore/internal/platform/config"
	id "shopcore/pkg/domain"
)

type tokenOutput struct {
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token,omitempty"`
	AccessExpiresAt  time.Time         `json:"access_expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at,omitzero"`
	Claims           map[string]string `json:"claims"`
	Usage            map[string]string `json:"usage"`
}

type options struct {
	principalID string
	binding     string
	role        string
	ttl         time.Duration
	withRefresh bool
	jsonOutput  bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		opts, err := parseFlags(os.Args[2:])
		if err != nil {
			os.Exit(2)
		}
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if err := run(context.Background(), os.Stdout, cfg, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("access", flag.ContinueOnError)
	fs.StringVar(&opts.principalID, "principal-id", "U1", "Principal ID the token is issued to")
	fs.StringVar(&opts.binding, "binding", "", "Tenant binding for staff principals (empty for customers)")
	fs.StringVar(&opts.role, "role", "", "Role claim (defaults to admin when bound, customer otherwise)")
	fs.DurationVar(&opts.ttl, "ttl", 0, "Access token time-to-live (defaults to ACCESS_TOKEN_TTL)")
	fs.BoolVar(&opts.withRefresh, "refresh", false, "Also print the refresh token")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.role == "" {
		opts.role = "customer"
		if opts.binding != "" {
			opts.role = "admin"
		}
	}
	return opts, nil
}

func run(ctx context.Context, w io.Writer, cfg *config.Config, opts options) error {
	if cfg.IsProduction() {
		return fmt.Errorf("refusing to mint tokens with production configuration")
	}
	accessTTL := cfg.Auth.AccessTTL
	if opts.ttl > 0 {
		accessTTL = opts.ttl
	}
	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		jwttoken.WithAccessTTL(accessTTL),
		jwttoken.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)

	pair, err := svc.IssuePair(ctx, id.PrincipalID(opts.principalID), jwttoken.TenantClaims{
		Binding: id.TenantID(opts.binding),
		Role:    opts.role,
	})
	if err != nil {
		return err
	}

	out := tokenOutput{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		Claims: map[string]string{
			"sub":       opts.principalID,
			"tenant_id": opts.binding,
			"role":      opts.role,
			"iss":       cfg.Auth.Issuer,
			"aud":       cfg.Auth.Audience,
		},
		Usage: map[string]string{
			"header": "Authorization: Bearer <access_token>",
			"tenant": "X-Tenant-Id: <tenant> (required for unbound principals)",
		},
	}
	if opts.withRefresh {
		out.RefreshToken = pair.RefreshToken
		out.RefreshExpiresAt = pair.RefreshExpiresAt
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, "Access Token (JWT)")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Principal:   %s\n", opts.principalID)
	if opts.binding != "" {
		fmt.Fprintf(w, "Binding:     %s\n", opts.binding)
	}
	fmt.Fprintf(w, "Role:        %s\n", opts.role)
	fmt.Fprintf(w, "Expires At:  %s\n", pair.AccessExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Token:")
	fmt.Fprintln(w, pair.AccessToken)
	if opts.withRefresh {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Refresh Token:")
		fmt.Fprintln(w, pair.RefreshToken)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, `  curl -H "Authorization: Bearer <token>" http://localhost:8080/auth/me`)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `tokengen - Generate tokens for a local shopcore instance

WARNING: Tokens are signed with the configured key. The tool refuses to run
         when SHOPCORE_ENV=production.

Usage:
  tokengen access [flags]

Examples:
  # Token for the seeded shop-a admin
  tokengen access -principal-id U1 -binding shop-a

  # Customer token; pass X-Tenant-Id on each request
  tokengen access -principal-id C1

  # Short-lived token plus refresh token as JSON
  tokengen access -principal-id U1 -binding shop-a -ttl 1m -refresh -json

Use "tokengen access -h" for the flag list.`)
}
