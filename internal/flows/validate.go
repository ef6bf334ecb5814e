package flows

import (
	"context"

	"github.com/MrEthical07/bankauth/internal/metrics"
	"github.com/MrEthical07/bankauth/jwt"
)

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Common

	Verify func(token string) (*jwt.Claims, error)
}

// RunValidate verifies an access token. Validation is stateless: revoking a
// refresh chain does not shorten the access token's lifetime.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*jwt.Claims, error) {
	deps.fill()
	if deps.Verify == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.Observe(metrics.MetricValidateLatency, deps.Now().Sub(start)) }()

	if token == "" {
		return nil, deps.Errors.Unauthorized
	}
	claims, err := deps.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.UserID() == "" || claims.SID == "" {
		return nil, jwt.ErrTokenInvalid
	}
	return claims, nil
}
