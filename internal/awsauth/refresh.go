package awsauth

import "context"

// RefreshOutcome is the result of running the credential-refresh protocol
// of spec.md §4.1 after an HTTP 4xx that looks like an auth failure.
type RefreshOutcome struct {
	Credentials Credentials
	Retry       bool
}

// RefreshOnError implements the four-step recovery protocol verbatim:
//
//  1. Load(); if the access key differs from current, swap in and retry.
//  2. Else Validate() current; if valid, signal "do not retry" (not an auth problem).
//  3. Else Authenticate(); on success, Load() again and retry.
//  4. Any failure in 1-3 signals "do not retry".
func (r *Resolver) RefreshOnError(ctx context.Context, current Credentials) (RefreshOutcome, error) {
	if fresh, ok := r.Load(ctx, current.Profile, current.Region); ok {
		if fresh.AccessKeyID != current.AccessKeyID {
			r.log.WithFields(map[string]any{
				"old_key_suffix": suffix(current.AccessKeyID),
				"new_key_suffix": suffix(fresh.AccessKeyID),
			}).Info("awsauth: credentials rotated externally, retrying")
			return RefreshOutcome{Credentials: fresh, Retry: true}, nil
		}
	}

	valid, err := r.Validate(ctx, current)
	if err == nil && valid {
		r.log.Warn("awsauth: credentials still valid per STS, not an auth failure")
		return RefreshOutcome{Credentials: current, Retry: false}, nil
	}

	if authErr := r.Authenticate(ctx, current.Profile); authErr == nil {
		if fresh, ok := r.Load(ctx, current.Profile, current.Region); ok {
			r.log.Info("awsauth: re-authenticated, retrying")
			return RefreshOutcome{Credentials: fresh, Retry: true}, nil
		}
	}

	return RefreshOutcome{Credentials: current, Retry: false}, nil
}

func suffix(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
