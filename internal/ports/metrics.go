package ports

// MetricsRecorder receives operational counters from the application layer.
// Implementations must tolerate a nil receiver so metrics can be disabled in
// tests.
type MetricsRecorder interface {
	RecordProviderOp(provider, operation, status string, durationSeconds float64)
	RecordWebhookVerification(provider, result string)
	HandshakeStarted()
	HandshakeFinished()
}
