package host

import "time"

// MetricsRecorder allows the host to record request lifecycle metrics.
// The prometheus subpackage provides an implementation; a nil recorder
// disables collection (zero overhead).
type MetricsRecorder interface {
	RecordRequestAccepted()
	RecordRequestCompleted()
	RecordAcceptError()
	RecordDispatchError()
	RecordDiagnosticWritten()
	RecordDiagnosticWriteFailed()
	SetInFlight(count int32)
	ObserveDispatchDuration(d time.Duration)
}
