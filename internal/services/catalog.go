package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dispatchd/internal/config"
	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
	"github.com/fyrsmithlabs/dispatchd/internal/logging"
)

// Registry names, in processing order.
const (
	AuthRegistry = "auth"
	MainRegistry = "main"
)

// KindAuthError is the domain error kind raised by the auth and main
// registries.
const KindAuthError = "AuthError"

// ErrServiceFailed is returned by main.fail.
var ErrServiceFailed = errors.New("service failed on purpose")

// Options configures the catalog.
type Options struct {
	// Tokens maps user name to bearer token for auth.token_auth.
	Tokens map[string]config.Secret
	Logger *logging.Logger
}

// Catalog owns the sample registries.
type Catalog struct {
	auth   *dispatch.Registry
	main   *dispatch.Registry
	tokens map[string]config.Secret
	logger *logging.Logger
}

// NewCatalog registers every sample service.
func NewCatalog(opts Options) (*Catalog, error) {
	c := &Catalog{
		auth:   dispatch.NewRegistry(),
		main:   dispatch.NewRegistry(),
		tokens: make(map[string]config.Secret, len(opts.Tokens)),
		logger: opts.Logger,
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	for user, token := range opts.Tokens {
		c.tokens[user] = token
	}

	regs := []struct {
		reg  *dispatch.Registry
		name string
		spec dispatch.Spec
	}{
		{c.auth, "simple_auth", dispatch.Typed(simpleAuth)},
		{c.auth, "token_auth", dispatch.Typed(c.tokenAuth)},
		{c.auth, "system_auth", dispatch.NewSpec(systemAuth)},
		{c.main, "whoami", dispatch.Typed(whoami)},
		{c.main, "owner_id", dispatch.NewSpec(ownerID)},
		{c.main, "echo", dispatch.TypedWithDefaults(EchoArgs{Repeat: 1}, echo)},
		{c.main, "fail", dispatch.NewSpec(fail)},
	}
	for _, r := range regs {
		if err := r.reg.Register(r.name, r.spec); err != nil {
			return nil, err
		}
	}
	if err := c.auth.RegisterDefault(dispatch.NewSpec(anonymous)); err != nil {
		return nil, err
	}
	return c, nil
}

// Stages returns the registries in processing order.
func (c *Catalog) Stages() []dispatch.Stage {
	return []dispatch.Stage{
		{Name: AuthRegistry, Registry: c.auth},
		{Name: MainRegistry, Registry: c.main},
	}
}

// AuthError builds the catalog's authentication domain error.
func AuthError(msg string) *dispatch.Error {
	return dispatch.NewError(KindAuthError, map[string]any{"msg": msg})
}

// SimpleAuthArgs are the arguments of auth.simple_auth.
type SimpleAuthArgs struct {
	Username string `arg:"username"`
}

func simpleAuth(_ context.Context, _ *dispatch.Context, a SimpleAuthArgs) (any, error) {
	return a.Username, nil
}

// TokenAuthArgs are the arguments of auth.token_auth.
type TokenAuthArgs struct {
	Token string `arg:"token"`
}

// tokenAuth checks every configured token so the time taken does not
// depend on which user matched.
func (c *Catalog) tokenAuth(ctx context.Context, _ *dispatch.Context, a TokenAuthArgs) (any, error) {
	users := make([]string, 0, len(c.tokens))
	for user := range c.tokens {
		users = append(users, user)
	}
	sort.Strings(users)

	matched := ""
	for _, user := range users {
		if c.tokens[user].Equal(a.Token) && matched == "" {
			matched = user
		}
	}
	if matched == "" {
		c.logger.Info(ctx, "token rejected", logging.RedactedString("token", a.Token))
		return nil, AuthError("invalid token")
	}
	c.logger.Debug(ctx, "token accepted", zap.String("user", matched))
	return matched, nil
}

func anonymous(context.Context, *dispatch.Context, dispatch.Args) (any, error) {
	return nil, nil
}

// WhoamiArgs are the arguments of main.whoami.
type WhoamiArgs struct {
	AllCaps bool `arg:"all_caps,optional"`
}

func whoami(_ context.Context, dc *dispatch.Context, a WhoamiArgs) (any, error) {
	v := dc.Get(AuthRegistry)
	if v == nil {
		return nil, AuthError("not authenticated")
	}
	user, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("auth result has type %T, want string", v)
	}
	if a.AllCaps {
		return strings.ToUpper(user), nil
	}
	return user, nil
}

// EchoArgs are the arguments of main.echo.
type EchoArgs struct {
	Message string `arg:"message"`
	Repeat  int    `arg:"repeat,optional" validate:"min=1,max=10"`
}

func echo(_ context.Context, _ *dispatch.Context, a EchoArgs) (any, error) {
	parts := make([]string, a.Repeat)
	for i := range parts {
		parts[i] = a.Message
	}
	return strings.Join(parts, " "), nil
}

func fail(context.Context, *dispatch.Context, dispatch.Args) (any, error) {
	return nil, ErrServiceFailed
}
