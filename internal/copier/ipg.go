package copier

import "math"

// InterPacketGapMs computes the /IPG value that throttles a job to its
// fair share of limitMbps across effectiveJobCount concurrent jobs (spec
// §4.4). limitMbps <= 0 disables throttling (returns 0).
func InterPacketGapMs(limitMbps float64, activeJobs int, startingNewJob bool) int {
	if limitMbps <= 0 {
		return 0
	}
	effectiveJobCount := activeJobs
	if startingNewJob {
		effectiveJobCount++
	}
	if effectiveJobCount <= 0 {
		effectiveJobCount = 1
	}

	bytesPerSecondPerJob := (limitMbps * 125000) / float64(effectiveJobCount)
	if bytesPerSecondPerJob <= 0 {
		return 10000
	}
	ipg := math.Ceil(512000 / bytesPerSecondPerJob)

	if ipg < 1 {
		ipg = 1
	}
	if ipg > 10000 {
		ipg = 10000
	}
	return int(ipg)
}
