package metrics

const (
	WakeCyclesH     = "The total number of wake cycles completed"
	WakeCyclesN     = "epdclock_wake_cycles"
	WakeColdBootsH  = "The total number of cold boots (retained state absent or invalid)"
	WakeColdBootsN  = "epdclock_wake_cold_boots"
	WakeSyncsH      = "The total number of successful time syncs"
	WakeSyncsN      = "epdclock_wake_syncs"
	WakeSyncErrorsH = "The total number of failed time sync attempts"
	WakeSyncErrorsN = "epdclock_wake_sync_errors"

	DriftRateH          = "The current drift rate estimate in milliseconds per minute"
	DriftRateN          = "epdclock_drift_rate_ms_per_min"
	DriftAnomaliesH     = "The total number of drift rate updates discarded as out of range"
	DriftAnomaliesN     = "epdclock_drift_anomalies"
	ProcessingEstimateH = "The current processing time estimate in milliseconds"
	ProcessingEstimateN = "epdclock_processing_estimate_ms"

	ClientReqsSentH      = "The total number of time sync requests sent"
	ClientReqsSentN      = "epdclock_client_reqs_sent"
	ClientRespsAcceptedH = "The total number of time sync responses accepted"
	ClientRespsAcceptedN = "epdclock_client_resps_accepted"

	ServerPktsReceivedH = "The total number of packets received by the time service"
	ServerPktsReceivedN = "epdclock_server_pkts_received"
	ServerReqsAcceptedH = "The total number of requests accepted by the time service"
	ServerReqsAcceptedN = "epdclock_server_reqs_accepted"
	ServerReqsServedH   = "The total number of requests served by the time service"
	ServerReqsServedN   = "epdclock_server_reqs_served"
)
