// Package logx configures kolwatch's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and rotated
//   - An optional Telegram sink (min-level + rate limiting)
package logx
