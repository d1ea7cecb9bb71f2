// Package health reports whether the long-lived docguard process can do its
// work.
//
// A Checker runs named component checks concurrently, each under its own
// timeout, and serves two endpoints next to the metrics endpoint:
//
//   - /healthz: liveness, always 200 while the process runs
//   - /readyz: readiness, 503 when any component check fails
//
// Usage:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("run_store", func(ctx context.Context) error {
//	    _, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
//	    return err
//	})
//	srv := collector.Server(checker.Mount)
package health
