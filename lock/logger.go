package lock

import "github.com/roelbroersma/kerong-BT-lock/common"

// Logger is the logging interface used by the driver.
// Re-exported from common for user convenience.
type Logger = common.Logger

// NopLogger returns a silent Logger (default).
var NopLogger = common.NopLogger

// NewStdLogger creates a Logger backed by Go's standard log package.
var NewStdLogger = common.NewStdLogger
