package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Route is the screen a client should open on startup.
type Route string

const (
	RouteWelcome      Route = "welcome"
	RouteMain         Route = "main"
	RouteLogin        Route = "login"
	RouteSetupAccount Route = "setup_account"
)

// Route decides where startup lands:
//
//   - no stored base URL: Welcome (discovery)
//   - a stored token that has not expired: Main
//   - otherwise the backend is asked whether an account exists: Login if
//     it does, SetupAccount if not
//
// Any failure talking to the backend lands on Welcome. The returned error
// explains why but the route is always usable.
func (s *Service) Route(ctx context.Context) (Route, error) {
	snap := s.store.Snapshot()
	if !snap.Configured() {
		return RouteWelcome, nil
	}

	if snap.Token != "" {
		if !TokenExpired(snap.Token, s.now()) {
			return RouteMain, nil
		}
		s.logger.Info("stored token expired, signing out")
		if err := s.store.ClearToken(ctx); err != nil {
			s.logger.Warn("clear expired token", zap.Error(err))
		}
	}

	res, err := s.backend.Status(ctx)
	if err != nil {
		return RouteWelcome, err
	}
	if !res.OK() || res.Body == nil {
		return RouteWelcome, statusError(res)
	}
	if res.Body.IsConfigured {
		return RouteLogin, nil
	}
	return RouteSetupAccount, nil
}

// TokenExpired reports whether token is a JWT whose exp claim is at or
// before now. The signature is not checked; only the backend can do that.
// Tokens that are not JWTs, or carry no exp, never expire client-side.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
