package common

import (
	"log"
	"os"
	"strconv"
)

// ComputeDefaultThreadsPerJob picks the copy engine's --threads value for
// every chunk the scheduler dispatches. Honors REPLISTORE_THREADS_PER_JOB if
// set, else scales with CPU count.
func ComputeDefaultThreadsPerJob(numOfCPUs int) int {
	threadsOverride := os.Getenv("REPLISTORE_THREADS_PER_JOB")
	if threadsOverride != "" {
		val, err := strconv.ParseInt(threadsOverride, 10, 64)
		if err != nil {
			log.Fatalf("error parsing the env REPLISTORE_THREADS_PER_JOB %q failed with error %v",
				threadsOverride, err)
		}
		return int(val)
	}

	// fix the concurrency value for smaller machines
	if numOfCPUs <= 4 {
		return 32
	}

	// for machines that are extremely powerful, fix to 300 to avoid running out of file descriptors
	if 16*numOfCPUs > 300 {
		return 300
	}

	// for moderately powerful machines, compute a reasonable number
	return 16 * numOfCPUs
}
