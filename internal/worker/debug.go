package worker

import (
	"log"
	"os"
	"strconv"
)

// SYNTHESIS_WORKER_DEBUG accepts anything strconv.ParseBool does.
var traceJobs = parseDebugFlag(os.Getenv("SYNTHESIS_WORKER_DEBUG"))

func parseDebugFlag(v string) bool {
	on, err := strconv.ParseBool(v)
	return err == nil && on
}

// debugLog traces dispatcher and job scheduling when SYNTHESIS_WORKER_DEBUG is set.
func debugLog(format string, args ...interface{}) {
	if !traceJobs {
		return
	}
	log.Printf(format, args...)
}
