package models

// Wallet is a custodial address the service controls. PrivateKey never
// leaves the withdrawal pipeline and the outbound gateway call.
// TrackingState is the opaque cursor issued by the payment gateway so
// activity scanning can resume after a restart.
type Wallet struct {
	ID            string `json:"id" db:"id"`
	Address       string `json:"address" db:"address"`
	PrivateKey    string `json:"-" db:"private_key"`
	TrackingState string `json:"tracking_state,omitempty" db:"tracking_state"`
}
