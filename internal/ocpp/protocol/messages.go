package protocol

import "time"

// BootNotificationRequest carries charge point identity on boot.
type BootNotificationRequest struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
	FirmwareVersion   string `json:"firmwareVersion,omitempty"`
	MeterType         string `json:"meterType,omitempty"`
}

// BootNotificationResponse tells the charge point whether it was accepted and
// how often to heartbeat.
type BootNotificationResponse struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
}

// StatusNotificationRequest reports a connector status change.
type StatusNotificationRequest struct {
	ConnectorID int       `json:"connectorId"`
	Status      string    `json:"status"`
	ErrorCode   string    `json:"errorCode"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatusNotificationResponse is an empty ack.
type StatusNotificationResponse struct{}

// StartTransactionRequest opens a charging transaction.
type StartTransactionRequest struct {
	ConnectorID int       `json:"connectorId"`
	IdTag       string    `json:"idTag"`
	MeterStart  int64     `json:"meterStart"`
	Timestamp   time.Time `json:"timestamp"`
}

// IdTagInfo reports authorization status for an idTag.
type IdTagInfo struct {
	Status string `json:"status"`
}

// StartTransactionResponse returns the server-allocated transaction id.
type StartTransactionResponse struct {
	TransactionID int64     `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

// HeartbeatRequest is empty.
type HeartbeatRequest struct{}

// HeartbeatResponse returns server time.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// MeterValuesRequest reports one meter reading within a transaction.
type MeterValuesRequest struct {
	ConnectorID   int       `json:"connectorId"`
	TransactionID int64     `json:"transactionId"`
	MeterValue    int64     `json:"meterValue"`
	Timestamp     time.Time `json:"timestamp"`
}

// MeterValuesResponse is an empty ack.
type MeterValuesResponse struct{}

// StopTransactionRequest closes a charging transaction.
type StopTransactionRequest struct {
	TransactionID int64     `json:"transactionId"`
	IdTag         string    `json:"idTag,omitempty"`
	MeterStop     int64     `json:"meterStop"`
	Timestamp     time.Time `json:"timestamp"`
	Reason        string    `json:"reason,omitempty"`
}

// StopTransactionResponse acknowledges the stop.
type StopTransactionResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}
