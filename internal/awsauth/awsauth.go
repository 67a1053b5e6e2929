// Package awsauth resolves AWS credentials from non-interactive sources and
// drives the explicit re-authentication protocol of spec.md §4.1. It never
// calls the AWS SDK's credential chain — per the spec, SDK-driven discovery
// is exactly what this component replaces with a subprocess-driven one, so
// that external credential-rotation tools (leases, helper daemons) are
// picked up without forcing an interactive SSO prompt.
package awsauth

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Credentials is an immutable bundle of AWS credentials. Refreshing replaces
// the whole struct; nothing mutates it in place.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Profile         string
}

// authPatterns are the substrings spec.md §4.1 says indicate a credential
// problem worth attempting a refresh/re-auth cycle for, rather than a hard
// failure.
var authPatterns = []string{
	"ExpiredToken",
	"InvalidToken",
	"InvalidClientTokenId",
	"AccessDenied",
	"TokenExpired",
	"SignatureDoesNotMatch",
	"UnrecognizedClientException",
}

// LooksLikeAuthError reports whether an HTTP 4xx body/message matches one of
// the known credential-rotation patterns.
func LooksLikeAuthError(httpStatus int, body string) bool {
	if httpStatus != 400 && httpStatus != 401 && httpStatus != 403 {
		return false
	}
	for _, p := range authPatterns {
		if strings.Contains(body, p) {
			return true
		}
	}
	return false
}

// Runner abstracts child-process execution so tests can stub it without
// touching the real `aws` CLI.
type Runner interface {
	// Run executes name with args and env additions, returning combined
	// stdout+stderr and the process exit error (nil on exit 0).
	Run(ctx context.Context, env map[string]string, name string, args ...string) (output string, err error)
}

// execRunner shells out via os/exec. This is the one place os/exec is used
// without an ecosystem substitute: spec.md §4.1 contract is literally "run
// aws CLI as a subprocess", so there is no library call to wire instead.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, env map[string]string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Resolver loads, authenticates, and validates AWS credentials.
type Resolver struct {
	runner Runner
	log    *logrus.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRunner overrides the subprocess runner (for tests).
func WithRunner(r Runner) Option {
	return func(res *Resolver) { res.runner = r }
}

// WithLogger sets the logger used for refresh-protocol diagnostics.
func WithLogger(log *logrus.Logger) Option {
	return func(res *Resolver) { res.log = log }
}

// NewResolver builds a Resolver with the real `aws` CLI runner by default.
func NewResolver(opts ...Option) *Resolver {
	res := &Resolver{runner: execRunner{}, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Load tries, in order: environment variables; `aws configure
// export-credentials`; `aws configure get`; and (if the profile has an SSO
// start URL) a retry of export-credentials against the SSO cache. It
// returns (creds, true) on the first source yielding a non-empty access key
// id and secret, or (zero, false) if none do. Load never validates against
// STS and never triggers interactive login.
func (r *Resolver) Load(ctx context.Context, profile, region string) (Credentials, bool) {
	if profile == "" {
		profile = "default"
	}
	if region == "" {
		region = "us-west-2"
	}

	if creds, ok := r.fromEnv(region, profile); ok {
		return creds, true
	}
	if creds, ok := r.fromExportCredentials(ctx, profile, region); ok {
		return creds, true
	}
	if creds, ok := r.fromConfigureGet(ctx, profile, region); ok {
		return creds, true
	}
	if r.hasSSOStartURL(ctx, profile) {
		if creds, ok := r.fromExportCredentials(ctx, profile, region); ok {
			return creds, true
		}
	}
	return Credentials{}, false
}

func (r *Resolver) fromEnv(region, profile string) (Credentials, bool) {
	akid := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if akid == "" || secret == "" {
		return Credentials{}, false
	}
	return Credentials{
		AccessKeyID:     akid,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Region:          region,
		Profile:         profile,
	}, true
}

func (r *Resolver) fromExportCredentials(ctx context.Context, profile, region string) (Credentials, bool) {
	out, err := r.runner.Run(ctx, nil, "aws", "configure", "export-credentials", "--profile", profile, "--format", "env")
	if err != nil {
		return Credentials{}, false
	}
	return parseEnvFormat(out, region, profile)
}

func (r *Resolver) fromConfigureGet(ctx context.Context, profile, region string) (Credentials, bool) {
	akid, err := r.runner.Run(ctx, nil, "aws", "configure", "get", "aws_access_key_id", "--profile", profile)
	if err != nil {
		return Credentials{}, false
	}
	secret, err := r.runner.Run(ctx, nil, "aws", "configure", "get", "aws_secret_access_key", "--profile", profile)
	if err != nil {
		return Credentials{}, false
	}
	akid = strings.TrimSpace(akid)
	secret = strings.TrimSpace(secret)
	if akid == "" || secret == "" {
		return Credentials{}, false
	}
	return Credentials{AccessKeyID: akid, SecretAccessKey: secret, Region: region, Profile: profile}, true
}

func (r *Resolver) hasSSOStartURL(ctx context.Context, profile string) bool {
	out, err := r.runner.Run(ctx, nil, "aws", "configure", "get", "sso_start_url", "--profile", profile)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// parseEnvFormat parses the `export AWS_ACCESS_KEY_ID=...` style output of
// `aws configure export-credentials --format env`.
func parseEnvFormat(out, region, profile string) (Credentials, bool) {
	creds := Credentials{Region: region, Profile: profile}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], strings.Trim(parts[1], `"`)
		switch key {
		case "AWS_ACCESS_KEY_ID":
			creds.AccessKeyID = val
		case "AWS_SECRET_ACCESS_KEY":
			creds.SecretAccessKey = val
		case "AWS_SESSION_TOKEN":
			creds.SessionToken = val
		}
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return Credentials{}, false
	}
	return creds, true
}

// Authenticate runs AWS_AUTH_COMMAND if set, else `aws sso login --profile
// P`. It is the only path that may block on interactive user input.
func (r *Resolver) Authenticate(ctx context.Context, profile string) error {
	if profile == "" {
		profile = "default"
	}
	if cmd := os.Getenv("AWS_AUTH_COMMAND"); cmd != "" {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			return errAuthCommandEmpty
		}
		_, err := r.runner.Run(ctx, nil, fields[0], fields[1:]...)
		return err
	}
	_, err := r.runner.Run(ctx, nil, "aws", "sso", "login", "--profile", profile)
	return err
}

// Validate calls `aws sts get-caller-identity` with creds bound as
// environment and inspects stdout/stderr for known valid/invalid markers.
// Used only by the top-level refresh protocol after an HTTP 4xx.
func (r *Resolver) Validate(ctx context.Context, creds Credentials) (bool, error) {
	env := map[string]string{
		"AWS_ACCESS_KEY_ID":     creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": creds.SecretAccessKey,
	}
	if creds.SessionToken != "" {
		env["AWS_SESSION_TOKEN"] = creds.SessionToken
	}
	out, err := r.runner.Run(ctx, env, "aws", "sts", "get-caller-identity")
	if strings.Contains(out, "UserId") || strings.Contains(out, "Account") {
		return true, nil
	}
	for _, bad := range []string{"ExpiredToken", "InvalidToken", "InvalidClientTokenId", "AccessDenied"} {
		if strings.Contains(out, bad) {
			return false, nil
		}
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

var errAuthCommandEmpty = authCommandEmptyErr{}

type authCommandEmptyErr struct{}

func (authCommandEmptyErr) Error() string { return "awsauth: AWS_AUTH_COMMAND is empty" }
