package protocol

// Actions handled by the engine.
const (
	ActionBootNotification   = "BootNotification"
	ActionStatusNotification = "StatusNotification"
	ActionStartTransaction   = "StartTransaction"
	ActionHeartbeat          = "Heartbeat"
	ActionMeterValues        = "MeterValues"
	ActionStopTransaction    = "StopTransaction"
)

// Registration and idTag authorization status values.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
)

// Connector status values (subset).
const (
	ConnectorAvailable = "Available"
	ConnectorCharging  = "Charging"
	ConnectorFinishing = "Finishing"
	ConnectorFaulted   = "Faulted"
)

// NoError is the errorCode a healthy connector reports in
// StatusNotification.
const NoError = "NoError"
