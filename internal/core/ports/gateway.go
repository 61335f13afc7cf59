package ports

import "context"

// EncryptRequest is the canonical field set sent to the gateway's
// encryption endpoint. Amount travels as a string per the gateway
// contract; ReturnToken is the short caller identifier (max 15 chars).
type EncryptRequest struct {
	RegID       string `json:"reg_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Category    string `json:"category"`
	TxnID       string `json:"txn_id"`
	Amount      string `json:"amt"`
	ReturnToken string `json:"client_returnurl"`
	Provider    string `json:"provider"`
}

// CallbackFields is the normalized result of decrypting an inbound
// callback, regardless of which of the gateway's response shapes
// carried it.
type CallbackFields struct {
	RegID      string
	Category   string
	TxnID      string
	StatusCode string
}

// Gateway is the opaque external encrypt/decrypt service. Both calls
// are blocking HTTP round trips with no automatic retry: a failure
// surfaces to the caller, who must start a fresh intent.
type Gateway interface {
	Encrypt(ctx context.Context, req EncryptRequest) (string, error)
	Decrypt(ctx context.Context, data string) (*CallbackFields, error)
	// PayURL builds the hosted-payment redirect for an encrypted blob.
	PayURL(encrypted string) string
}
