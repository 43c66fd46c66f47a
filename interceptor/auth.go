package interceptor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/payload"
)

var errMissingAuthentication = errors.New("missing authentication")

// Verifier checks the authentication of a request.
type Verifier = func(ctx context.Context, auth *extension.Authentication) error

// Authenticate rejects incoming requests whose composite metadata carries no valid authentication.
// Metadata pushes are not checked.
func Authenticate(verify Verifier) RSocketInterceptor {
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		if req.MetadataPush {
			return ctx, nil, nil, nil
		}
		auth, err := findAuthentication(req.Payload)
		if err == nil {
			err = verify(ctx, auth)
		}
		if err != nil {
			return ctx, nil, nil, core.NewError(core.ErrorCodeRejected, []byte("unauthorized: "+err.Error()))
		}
		return context.WithValue(ctx, authKey{}, auth), nil, nil, nil
	})
}

// BearerVerifier accepts bearer tokens in the set.
func BearerVerifier(tokens ...string) Verifier {
	allowed := make(map[string]struct{}, len(tokens))
	for _, it := range tokens {
		allowed[it] = struct{}{}
	}
	return func(_ context.Context, auth *extension.Authentication) error {
		token, ok := auth.BearerToken()
		if !ok {
			return errors.Errorf("unsupported authentication type %s", auth.Type())
		}
		if _, ok := allowed[token]; !ok {
			return errors.New("invalid bearer token")
		}
		return nil
	}
}

// AuthenticateSetup rejects a connection whose setup metadata carries no valid authentication.
// The setup metadata must be composite.
func AuthenticateSetup(verify Verifier) AcceptorInterceptor {
	return func(next Acceptor) Acceptor {
		return func(ctx context.Context, setup payload.SetupPayload, requester socket.CloseableRSocket) (RSocket, error) {
			auth, err := findAuthentication(setup)
			if err == nil {
				err = verify(ctx, auth)
			}
			if err != nil {
				return nil, core.NewError(core.ErrorCodeRejectedSetup, []byte("unauthorized: "+err.Error()))
			}
			return next(context.WithValue(ctx, authKey{}, auth), setup, requester)
		}
	}
}

func findAuthentication(msg payload.Payload) (*extension.Authentication, error) {
	if msg == nil {
		return nil, errMissingAuthentication
	}
	metadata, ok := msg.Metadata()
	if !ok {
		return nil, errMissingAuthentication
	}
	raw, ok := extension.FindCompositeMetadata(metadata, extension.MessageAuthentication.String())
	if !ok {
		return nil, errMissingAuthentication
	}
	return extension.ParseAuthentication(raw)
}
