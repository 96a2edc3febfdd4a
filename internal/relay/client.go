package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
)

// Signer supplies the current device's credentials.
type Signer interface {
	Device() (domain.LocalDevice, error)
	LoginKey() (domain.SymmetricKey, error)
}

// Client talks to a relay over HTTP.
type Client struct {
	Base string
	HTTP *http.Client

	signer Signer
	log    logrus.FieldLogger
}

// NewClient returns a Client for the relay at base. signer may be nil for
// a client that only registers users.
func NewClient(base string, signer Signer, log logrus.FieldLogger) *Client {
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		HTTP:   http.DefaultClient,
		signer: signer,
		log:    log.WithField("component", "relay-client"),
	}
}

// FetchPermission returns owner's permission for keyID. The relay only
// serves the authenticated user's own permissions.
func (c *Client) FetchPermission(
	ctx context.Context,
	owner domain.UserID,
	keyID domain.ConversationKeyID,
) (domain.ServerPermission, error) {
	var out domain.ServerPermission
	err := c.do(ctx, http.MethodGet, "/permissions/"+url.PathEscape(keyID.String()), nil, &out)
	if err != nil {
		return domain.ServerPermission{}, err
	}
	if out.OwnerID != owner {
		return domain.ServerPermission{}, domain.VerificationFailed("relay: permission %s is owned by %d, not %d",
			keyID, out.OwnerID, owner)
	}
	return out, nil
}

// ListPermissions returns owner's permissions.
func (c *Client) ListPermissions(ctx context.Context, owner domain.UserID) ([]domain.ServerPermission, error) {
	var out listResponse[domain.ServerPermission]
	if err := c.do(ctx, http.MethodGet, routePermissions, nil, &out); err != nil {
		return nil, err
	}
	for _, p := range out.Objects {
		if p.OwnerID != owner {
			return nil, domain.VerificationFailed("relay: permission %s is owned by %d, not %d",
				p.ConversationKeyID, p.OwnerID, owner)
		}
	}
	return out.Objects, nil
}

// PublishPermissions uploads perms.
func (c *Client) PublishPermissions(ctx context.Context, perms []domain.ServerPermission) error {
	return c.do(ctx, http.MethodPost, routePermissions, publishPermissionsRequest{Permissions: perms}, nil)
}

// FetchDevice returns the device with id. The result is not verified.
func (c *Client) FetchDevice(ctx context.Context, id domain.DeviceID) (domain.ServerDevice, error) {
	var out domain.ServerDevice
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return domain.ServerDevice{}, err
	}
	return out, nil
}

// FetchUser returns the user with id.
func (c *Client) FetchUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+id.String(), nil, &out); err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// RegisterUser creates a user. It is the only unauthenticated call.
func (c *Client) RegisterUser(ctx context.Context, reg domain.Registration) (domain.User, error) {
	var out domain.User
	if err := c.send(ctx, http.MethodPost, routeUsers, reg, &out, false); err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// PublishDevice uploads the current device.
func (c *Client) PublishDevice(ctx context.Context, device domain.ServerDevice) error {
	return c.do(ctx, http.MethodPost, routeDevices, device, nil)
}

// PublishRotation replaces the user's keypair and permissions.
func (c *Client) PublishRotation(ctx context.Context, batch domain.RotationBatch) error {
	body := userPatch{
		User: userPatchUser{
			EncryptionPubkey:  batch.EncryptionPubkey,
			EncryptionPrivkey: batch.EncryptionPrivkeyWrapped,
		},
		Permissions: batch.Permissions,
	}
	return c.do(ctx, http.MethodPatch, "/users/"+batch.UserID.String(), body, nil)
}

// CreateConversation creates conversation with its initial permissions.
func (c *Client) CreateConversation(
	ctx context.Context,
	conversation domain.Conversation,
	perms []domain.ServerPermission,
) error {
	body := createConversationRequest{Conversation: conversation, Permissions: perms}
	return c.do(ctx, http.MethodPost, routeConversations, body, nil)
}

// ListConversations returns the authenticated user's conversations.
func (c *Client) ListConversations(ctx context.Context, member domain.UserID) ([]domain.Conversation, error) {
	var out listResponse[domain.Conversation]
	if err := c.do(ctx, http.MethodGet, routeConversations, nil, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

// SendMessage posts msg to the conversation.
func (c *Client) SendMessage(
	ctx context.Context,
	conversationID domain.ConversationID,
	msg domain.OutgoingMessage,
) (domain.IncomingMessage, error) {
	var out domain.IncomingMessage
	if err := c.do(ctx, http.MethodPost, messagesPath(conversationID), msg, &out); err != nil {
		return domain.IncomingMessage{}, err
	}
	return out, nil
}

// FetchMessages returns up to limit of the latest messages, oldest first.
func (c *Client) FetchMessages(
	ctx context.Context,
	conversationID domain.ConversationID,
	limit int,
) ([]domain.IncomingMessage, error) {
	path := messagesPath(conversationID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out listResponse[domain.IncomingMessage]
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

func messagesPath(id domain.ConversationID) string {
	return "/conversations/" + url.PathEscape(id.String()) + "/messages"
}

// authorization builds the Authorization header from the signer.
func (c *Client) authorization() (string, error) {
	if c.signer == nil {
		return "", domain.Misconfigured("relay: no signer for an authenticated request")
	}
	dev, err := c.signer.Device()
	if err != nil {
		return "", err
	}
	lk, err := c.signer.LoginKey()
	if err != nil {
		return "", err
	}
	return NewCredentials(lk, dev).Header(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, in, out, true)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		h, err := c.authorization()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", h)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("relay request")
	if resp.StatusCode/100 != 2 {
		return statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return err
	}
	return domain.DecodeJSON(b, out)
}

// statusError maps a non-2xx response to an error of the matching kind.
func statusError(method, path string, resp *http.Response) error {
	var e errorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &e) != nil || e.Error == "" {
		e.Error = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return domain.Malformed("relay %s %s: %s", method, path, e.Error)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.VerificationFailed("relay %s %s: %s", method, path, e.Error)
	case http.StatusNotFound:
		return domain.NotFound("relay %s %s: %s", method, path, e.Error)
	default:
		return fmt.Errorf("relay %s %s: %s", method, path, e.Error)
	}
}

// Compile-time assertion that Client implements domain.Backend.
var _ domain.Backend = (*Client)(nil)
