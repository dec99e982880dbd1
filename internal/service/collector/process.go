package collector

import (
	"context"
	"os"

	"github.com/oshokin/rua-packager/internal/logger"
)

// warnIfToolRunning logs a warning when the tool binary is running, because
// Windows keeps running executables locked and the copy may fail.
func (c *Collector) warnIfToolRunning(ctx context.Context) {
	if c.processes == nil {
		return
	}

	var toolName string

	for _, spec := range c.opts.Components {
		if spec.Required {
			toolName = spec.Name
			break
		}
	}

	processList, err := c.processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != toolName {
			continue
		}

		logger.WarnKV(ctx, "The tool is running, copying it may fail",
			"executable", toolName, "pid", process.Pid())
	}
}
