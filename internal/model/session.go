package model

// SessionStatus is a point-in-time view of the single process-wide
// connection session, exposed on the status endpoint.
type SessionStatus struct {
	State            ConnectionState `json:"state"`
	PairingChallenge string          `json:"pairingChallenge,omitempty"`
	RetryCount       int             `json:"retryCount"`
}
