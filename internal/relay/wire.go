package relay

import "chatcore/internal/domain"

// Route templates shared by Client and Server.
const (
	routeUsers              = "/users"
	routeUser               = "/users/{id}"
	routeDevices            = "/devices"
	routeDevice             = "/devices/{id}"
	routePermissions        = "/permissions"
	routePermission         = "/permissions/{keyId}"
	routeConversations      = "/conversations"
	routeConversationMsgs   = "/conversations/{id}/messages"
	routeConversationStream = "/conversations/{id}/stream"
	routeMetrics            = "/metrics"
)

const (
	maxRequestBytes     = 4 << 20
	maxMessagePageLimit = 1000
)

type listResponse[T any] struct {
	Objects []T `json:"objects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type createConversationRequest struct {
	Conversation domain.Conversation       `json:"conversation"`
	Permissions  []domain.ServerPermission `json:"permissions"`
}

type publishPermissionsRequest struct {
	Permissions []domain.ServerPermission `json:"permissions"`
}

// userPatch is the body of PATCH /users/{id}. It replaces the user's
// encryption keypair and re-sealed permissions together.
type userPatch struct {
	User        userPatchUser             `json:"user"`
	Permissions []domain.ServerPermission `json:"permissions"`
}

type userPatchUser struct {
	EncryptionPubkey  domain.X25519Public `json:"encryptionPubkey"`
	EncryptionPrivkey []byte              `json:"encryptionPrivkey"`
}
