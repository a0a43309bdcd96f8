// Package logging provides structured logging for git2pdf on top of Zap.
//
// # Overview
//
// Logger methods take a context and add its correlation fields (trace_id,
// span_id, operation.id, request.id). Debug and info entries may be sampled;
// warnings and errors never are. TestLogger records entries through the zap
// observer for assertions.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithOperationID(ctx, "1718000000000-3f2a9c1b")
//	logger.Info(ctx, "conversion finished", zap.Int("pages", 12))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-05-02T10:15:30.123Z",
//	  "level": "info",
//	  "msg": "conversion finished",
//	  "operation.id": "1718000000000-3f2a9c1b",
//	  "pages": 12
//	}
//
// Packages below the orchestrator take a plain *zap.Logger; use
// Logger.Underlying to hand one out.
package logging
