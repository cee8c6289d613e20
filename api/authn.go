package api

import (
	"context"
	"net/http"
)

// AuthnClient talks to the authentication service.
type AuthnClient struct {
	*Client
}

func NewAuthnClient(baseURL string, opts ...Option) *AuthnClient {
	return &AuthnClient{Client: newClient("authn", baseURL, opts...)}
}

// CreateBootstrapToken mints a one-off registration token for nodeID.
// expiresIn is in seconds; nil lets the service pick its default.
// accessToken is sent as a bearer credential when non-empty.
func (c *AuthnClient) CreateBootstrapToken(ctx context.Context, nodeID string, expiresIn *int, accessToken string) (*Envelope[BootstrapToken], error) {
	req := &CreateBootstrapTokenRequest{NodeID: nodeID, ExpiresIn: expiresIn}
	return call[BootstrapToken](ctx, c.Client, request{
		method: http.MethodPost,
		path:   "/v1/bootstrap/tokens",
		body:   req,
		token:  accessToken,
	})
}

func (c *AuthnClient) Login(ctx context.Context, req *LoginRequest) (*Envelope[TokenResponse], error) {
	return call[TokenResponse](ctx, c.Client, request{method: http.MethodPost, path: "/v1/authn/login", body: req})
}

func (c *AuthnClient) Refresh(ctx context.Context, req *RefreshRequest) (*Envelope[TokenResponse], error) {
	return call[TokenResponse](ctx, c.Client, request{method: http.MethodPost, path: "/v1/authn/refresh", body: req})
}

// Introspect asks the service about token. The token travels only in the
// Authorization header; the request has no body.
func (c *AuthnClient) Introspect(ctx context.Context, token string) (*Envelope[Introspection], error) {
	return call[Introspection](ctx, c.Client, request{method: http.MethodPost, path: "/v1/authn/introspect", token: token})
}
