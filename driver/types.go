package driver

// KeyShare is the opaque result of a Keygen ceremony. The relay core
// never inspects it; it travels only inside the application's own
// sealed envelopes if a caller chooses to persist or transmit it.
type KeyShare struct {
	// GroupPublicKey identifies the ceremony's joint verification key.
	GroupPublicKey [32]byte
	// LocalSecret is this participant's own share of the key. LocalDriver
	// never actually needs it to Sign (see doc.go), but a real driver
	// would; it is carried here so KeyShare has the shape a threshold
	// implementation's KeyShare would.
	LocalSecret [32]byte
	// Participants is the full, canonically sorted set of public keys
	// that took part in Keygen.
	Participants [][]byte
}

// Signature is the opaque result of a Sign ceremony.
type Signature struct {
	Bytes []byte
}
