package types

// UserState is the server-side lifecycle state of a user.
type UserState string

const (
	UserPending UserState = "pending"
	UserActive  UserState = "active"
	UserBlocked UserState = "blocked"
)

// User is the server's public view of a user.
type User struct {
	ID               UserID       `json:"id"`
	State            UserState    `json:"state"`
	Name             string       `json:"name"`
	Picture          *string      `json:"picture"`
	EncryptionPubkey X25519Public `json:"encryptionPubkey"`
}

// Registration is what a new user submits. The private key is wrapped under
// the password-derived wrapping key before it leaves the device.
type Registration struct {
	Name                     string       `json:"name"`
	Email                    string       `json:"email"`
	LoginKey                 SymmetricKey `json:"loginKey"`
	PasswordVerificationKey  SymmetricKey `json:"passwordVerificationKey"`
	EncryptionPubkey         X25519Public `json:"encryptionPubkey"`
	EncryptionPrivkeyWrapped []byte       `json:"encryptionPrivkey"`
}

// RotationBatch replaces a user's encryption keypair and re-seals all of the
// user's permissions. The server applies it atomically or not at all.
type RotationBatch struct {
	UserID                   UserID             `json:"-"`
	EncryptionPubkey         X25519Public       `json:"encryptionPubkey"`
	EncryptionPrivkeyWrapped []byte             `json:"encryptionPrivkey"`
	Permissions              []ServerPermission `json:"permissions"`
}

// Conversation is the server's record of a conversation.
type Conversation struct {
	ID             ConversationID `json:"id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	ParticipantIDs []UserID       `json:"participantIds"`
}
