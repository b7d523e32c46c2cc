// Package logx configures schedsync's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Logger values cheap to copy and safe to use at their zero value
package logx
