// Package logging provides structured logging for dispatchd.
//
// # Overview
//
// Logger wraps Zap with:
//   - A Trace level (-2, below Debug) for per-service argument dumps
//   - stderr output, optional rotated file output and an optional
//     OpenTelemetry log bridge
//   - Context field injection (trace_id, request.id, dispatch.registry,
//     dispatch.service)
//   - Secret redaction at the encoder
//   - Level-aware sampling (errors never sampled)
//
// Standard output is reserved for responses, so the console sink writes to
// stderr.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, id)
//	ctx = logging.WithStage(ctx, "auth", "token_auth")
//	logger.Info(ctx, "request short-circuited", zap.String("kind", kind))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "message")
//	tl.AssertField(t, "message", "key", "value")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use.
package logging
