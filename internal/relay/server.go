package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/protocol/device"
)

// Backend is what the relay serves. LoginKey returns the login key a user
// registered with and is used to authenticate requests.
type Backend interface {
	domain.Backend
	LoginKey(ctx context.Context, id domain.UserID) (domain.SymmetricKey, error)
}

// Server serves a Backend over HTTP.
type Server struct {
	backend  Backend
	log      logrus.FieldLogger
	streams  *hub
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer builds the relay's routes. metricsHandler, if non-nil, is
// mounted at /metrics.
func NewServer(backend Backend, log logrus.FieldLogger, metricsHandler http.Handler) *Server {
	s := &Server{
		backend: backend,
		log:     log.WithField("component", "relay-server"),
		streams: newHub(),
	}

	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc(routeUsers, s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(routeUser, s.authed(s.handleGetUser)).Methods(http.MethodGet)
	r.HandleFunc(routeUser, s.authed(s.handlePatchUser)).Methods(http.MethodPatch)
	r.HandleFunc(routeDevices, s.handlePublishDevice).Methods(http.MethodPost)
	r.HandleFunc(routeDevice, s.authed(s.handleGetDevice)).Methods(http.MethodGet)
	r.HandleFunc(routePermissions, s.authed(s.handleListPermissions)).Methods(http.MethodGet)
	r.HandleFunc(routePermissions, s.authed(s.handlePublishPermissions)).Methods(http.MethodPost)
	r.HandleFunc(routePermission, s.authed(s.handleGetPermission)).Methods(http.MethodGet)
	r.HandleFunc(routeConversations, s.authed(s.handleListConversations)).Methods(http.MethodGet)
	r.HandleFunc(routeConversations, s.authed(s.handleCreateConversation)).Methods(http.MethodPost)
	r.HandleFunc(routeConversationMsgs, s.authed(s.handleFetchMessages)).Methods(http.MethodGet)
	r.HandleFunc(routeConversationMsgs, s.authed(s.handleSendMessage)).Methods(http.MethodPost)
	r.HandleFunc(routeConversationStream, s.authed(s.handleStream)).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle(routeMetrics, metricsHandler).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Close ends all open message streams.
func (s *Server) Close() { s.streams.close() }

// principal is the authenticated caller.
type principal struct {
	user   domain.UserID
	device domain.ServerDevice
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p principal)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authenticate(r)
		if err != nil {
			s.log.WithError(err).WithField("path", r.URL.Path).Warn("unauthenticated request")
			s.writeStatus(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		h(w, r, p)
	}
}

func (s *Server) authenticate(r *http.Request) (principal, error) {
	creds, err := ParseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return principal{}, err
	}
	dev, err := s.backend.FetchDevice(r.Context(), creds.Signature.DeviceID)
	if err != nil {
		return principal{}, err
	}
	if dev.State == domain.DeviceBlocked {
		return principal{}, domain.VerificationFailed("device %s is blocked", dev.ID)
	}
	lk, err := s.backend.LoginKey(r.Context(), dev.OwnerID)
	if err != nil {
		return principal{}, err
	}
	if err := creds.Verify(dev, lk); err != nil {
		return principal{}, err
	}
	return principal{user: dev.OwnerID, device: dev}, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := readJSON(r, &reg); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.backend.RegisterUser(r.Context(), reg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Infof("Registered user %d (%s)", user.ID, user.Name)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, _ principal) {
	id, err := userIDVar(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.backend.FetchUser(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handlePatchUser(w http.ResponseWriter, r *http.Request, p principal) {
	id, err := userIDVar(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if id != p.user {
		s.writeError(w, domain.VerificationFailed("user %d cannot modify user %d", p.user, id))
		return
	}
	var patch userPatch
	if err := readJSON(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	err = s.backend.PublishRotation(r.Context(), domain.RotationBatch{
		UserID:                   id,
		EncryptionPubkey:         patch.User.EncryptionPubkey,
		EncryptionPrivkeyWrapped: patch.User.EncryptionPrivkey,
		Permissions:              patch.Permissions,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Infof("User %d rotated encryption keypair (%d permissions)", id, len(patch.Permissions))
	w.WriteHeader(http.StatusNoContent)
}

// handlePublishDevice accepts a device signed by itself. The caller
// authenticates with the new device's own credentials, so the device
// cannot yet be looked up.
func (s *Server) handlePublishDevice(w http.ResponseWriter, r *http.Request) {
	creds, err := ParseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		s.writeStatus(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	var dev domain.ServerDevice
	if err := readJSON(r, &dev); err != nil {
		s.writeError(w, err)
		return
	}
	if err := device.VerifyServerDevice(dev); err != nil {
		s.writeError(w, err)
		return
	}
	if dev.State != domain.DeviceActive {
		s.writeError(w, domain.Malformed("device %s: new devices must be active", dev.ID))
		return
	}
	lk, err := s.backend.LoginKey(r.Context(), dev.OwnerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := creds.Verify(dev, lk); err != nil {
		s.log.WithError(err).Warn("rejecting device publish")
		s.writeStatus(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	if err := s.backend.PublishDevice(r.Context(), dev); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Infof("Published device %s for user %d", dev.ID, dev.OwnerID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request, _ principal) {
	dev, err := s.backend.FetchDevice(r.Context(), domain.DeviceID(mux.Vars(r)["id"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request, p principal) {
	perms, err := s.backend.ListPermissions(r.Context(), p.user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.ServerPermission]{Objects: perms})
}

func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request, p principal) {
	perm, err := s.backend.FetchPermission(r.Context(), p.user, domain.ConversationKeyID(mux.Vars(r)["keyId"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (s *Server) handlePublishPermissions(w http.ResponseWriter, r *http.Request, p principal) {
	var req publishPermissionsRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	for _, perm := range req.Permissions {
		conv, err := s.memberConversation(r.Context(), p.user, perm.ConversationID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := checkCreated(perm, p, conv); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if err := s.backend.PublishPermissions(r.Context(), req.Permissions); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, p principal) {
	convs, err := s.backend.ListConversations(r.Context(), p.user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Conversation]{Objects: convs})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, p principal) {
	var req createConversationRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	conv := req.Conversation
	if !isParticipant(conv, p.user) {
		s.writeError(w, domain.Malformed("conversation %s: creator %d is not a participant", conv.ID, p.user))
		return
	}
	covered := make(map[domain.UserID]bool, len(conv.ParticipantIDs))
	for _, perm := range req.Permissions {
		if err := checkCreated(perm, p, conv); err != nil {
			s.writeError(w, err)
			return
		}
		covered[perm.OwnerID] = true
	}
	for _, id := range conv.ParticipantIDs {
		if !covered[id] {
			s.writeError(w, domain.Malformed("conversation %s: no permission for participant %d", conv.ID, id))
			return
		}
	}
	if err := s.backend.CreateConversation(r.Context(), conv, req.Permissions); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Infof("User %d created conversation %s", p.user, conv.ID)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleFetchMessages(w http.ResponseWriter, r *http.Request, p principal) {
	id := domain.ConversationID(mux.Vars(r)["id"])
	if _, err := s.memberConversation(r.Context(), p.user, id); err != nil {
		s.writeError(w, err)
		return
	}
	limit := maxMessagePageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, domain.Malformed("limit %q is not a positive integer", v))
			return
		}
		limit = min(n, maxMessagePageLimit)
	}
	msgs, err := s.backend.FetchMessages(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.IncomingMessage]{Objects: msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, p principal) {
	id := domain.ConversationID(mux.Vars(r)["id"])
	if _, err := s.memberConversation(r.Context(), p.user, id); err != nil {
		s.writeError(w, err)
		return
	}
	var msg domain.OutgoingMessage
	if err := readJSON(r, &msg); err != nil {
		s.writeError(w, err)
		return
	}
	if msg.Context.DeviceKeyID != p.device.ID {
		s.writeError(w, domain.VerificationFailed("message claims device %s, sent by %s",
			msg.Context.DeviceKeyID, p.device.ID))
		return
	}
	in, err := s.backend.SendMessage(r.Context(), id, msg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.streams.publish(id, in)
	writeJSON(w, http.StatusCreated, in)
}

// memberConversation returns conversation id if user participates in it.
func (s *Server) memberConversation(
	ctx context.Context,
	user domain.UserID,
	id domain.ConversationID,
) (domain.Conversation, error) {
	convs, err := s.backend.ListConversations(ctx, user)
	if err != nil {
		return domain.Conversation{}, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Conversation{}, domain.NotFound("conversation %s", id)
}

// checkCreated checks that perm was created by the caller for a
// participant of conv.
func checkCreated(perm domain.ServerPermission, p principal, conv domain.Conversation) error {
	switch {
	case perm.ConversationID != conv.ID:
		return domain.Malformed("permission %s: belongs to conversation %s", perm.ConversationKeyID, perm.ConversationID)
	case perm.CreatorID != p.user:
		return domain.VerificationFailed("permission %s: creator %d is not the caller", perm.ConversationKeyID, perm.CreatorID)
	case perm.Signature.DeviceID != p.device.ID:
		return domain.VerificationFailed("permission %s: signed by %s, not the calling device",
			perm.ConversationKeyID, perm.Signature.DeviceID)
	case !isParticipant(conv, perm.OwnerID):
		return domain.Malformed("permission %s: owner %d is not a participant", perm.ConversationKeyID, perm.OwnerID)
	}
	return nil
}

func isParticipant(conv domain.Conversation, id domain.UserID) bool {
	for _, pid := range conv.ParticipantIDs {
		if pid == id {
			return true
		}
	}
	return false
}

func userIDVar(r *http.Request) (domain.UserID, error) {
	v := mux.Vars(r)["id"]
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.Malformed("user id %q", v)
	}
	return domain.UserID(n), nil
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		return err
	}
	if len(b) > maxRequestBytes {
		return domain.Malformed("request body exceeds %d bytes", maxRequestBytes)
	}
	return domain.DecodeJSON(b, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		s.writeStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrVerificationFailed):
		s.writeStatus(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.writeStatus(w, http.StatusNotFound, err.Error())
	default:
		s.log.WithError(err).Error("internal error")
		s.writeStatus(w, http.StatusInternalServerError, "internal error")
	}
}

// instrument counts requests by route template and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.RelayRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("relay: %T cannot hijack", r.ResponseWriter)
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
