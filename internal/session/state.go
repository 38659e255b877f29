package session

import "time"

// Phase of the charge point lifecycle. Transitions only ever move along
// Connected -> Booted -> Transacting -> Stopped; StartTransaction may restart
// a Stopped session back into Transacting.
type Phase string

const (
	PhaseConnected   Phase = "Connected"
	PhaseBooted      Phase = "Booted"
	PhaseTransacting Phase = "Transacting"
	PhaseStopped     Phase = "Stopped"
)

// State is the per-charge-point record. It is owned exclusively by the
// connection handling that charge point, so its fields need no locking; only
// the registry map holding it is shared.
type State struct {
	ChargePointID string
	Phase         Phase

	// CurrentTransactionID is non-zero exactly while Phase is Transacting.
	CurrentTransactionID int64
	ConnectorID          int

	LastMeterValue     int64
	LastMeterTimestamp time.Time

	HeartbeatCount int
}

// BeginTransaction moves the session into Transacting and resets the meter
// sequence to the transaction's starting reading.
func (s *State) BeginTransaction(transactionID int64, connectorID int, meterStart int64) {
	s.Phase = PhaseTransacting
	s.CurrentTransactionID = transactionID
	s.ConnectorID = connectorID
	s.LastMeterValue = meterStart
	s.LastMeterTimestamp = time.Time{}
}

// EndTransaction moves the session into Stopped and clears the transaction.
func (s *State) EndTransaction() {
	s.Phase = PhaseStopped
	s.CurrentTransactionID = 0
}
