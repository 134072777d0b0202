// Package instrumentation provides OpenTelemetry metrics, tracing and the
// reply audit trail for autoreply.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total, http_request_duration_seconds
//   - active_sessions: 1 while an authorized session drives the poll loop
//
// Google API:
//   - google_api_operations_total, google_api_operation_duration_seconds
//
// OAuth:
//   - oauth_auth_total: code exchanges by result
//   - oauth_token_refresh_total: token refreshes by result
//
// Scanner:
//   - autoreply_scans_total, autoreply_scan_duration_seconds
//   - autoreply_threads_evaluated_total by outcome
//   - autoreply_replies_total by status
//   - autoreply_labels_created_total
//
// # Tracing
//
// Each scan is a span (autoreply.scan) with one child per Gmail call
// (google.gmail.<operation>).
//
// # Configuration
//
// Read from the environment by DefaultConfig:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: autoreply)
//   - AUDIT_LOGGING, AUDIT_LOGGING_INCLUDE_PII
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordScan(ctx, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
