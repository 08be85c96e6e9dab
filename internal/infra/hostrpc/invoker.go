package hostrpc

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// InvokerConfig holds the settings of an rpc host.
type InvokerConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	Token     string `yaml:"token" mapstructure:"token"`
	TimeoutMs int    `yaml:"timeout_ms" mapstructure:"timeout_ms" default:"3000" validate:"gte=100"`
}

// Invoker forwards host commands to a host shell over Connect RPC.
type Invoker struct {
	client *connect.Client[structpb.Struct, emptypb.Empty]
	config *InvokerConfig
}

// NewInvoker creates an Invoker from host settings.
func NewInvoker(settings map[string]any) (*Invoker, error) {
	var config InvokerConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	httpClient := &http.Client{Timeout: time.Duration(config.TimeoutMs) * time.Millisecond}
	return &Invoker{
		client: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, config.Endpoint+HostInvokeProcedure),
		config: &config,
	}, nil
}

// Name returns the backend name.
func (i *Invoker) Name() string {
	return "rpc"
}

// Invoke sends the command to the host shell.
func (i *Invoker) Invoke(ctx context.Context, cmd string, args map[string]any) error {
	msg, err := structpb.NewStruct(map[string]any{
		"command": cmd,
		"args":    args,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s arguments", cmd)
	}

	req := connect.NewRequest(msg)
	if i.config.Token != "" {
		req.Header().Set(TokenHeader, i.config.Token)
	}
	if _, err := i.client.CallUnary(ctx, req); err != nil {
		return errors.Wrapf(err, "host invoke %s failed", cmd)
	}
	return nil
}

// InvokeFunc handles a host command on the host side.
type InvokeFunc func(ctx context.Context, cmd string, args map[string]any) error

// NewHostHandler serves HostService/Invoke with fn. token, when set, must
// match the request's TokenHeader.
func NewHostHandler(token string, fn InvokeFunc) (string, http.Handler) {
	handler := connect.NewUnaryHandler(
		HostInvokeProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
			fields := req.Msg.AsMap()
			cmd, _ := fields["command"].(string)
			if cmd == "" {
				return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("command is required"))
			}
			args, _ := fields["args"].(map[string]any)
			if err := fn(ctx, cmd, args); err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(&emptypb.Empty{}), nil
		},
		connect.WithInterceptors(NewTokenInterceptor(token)),
	)
	return "/" + HostServiceName + "/", handler
}

// NewTokenInterceptor creates an interceptor that validates the shared token.
// An empty token disables the check.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token == "" {
				return next(ctx, req)
			}
			got := req.Header().Get(TokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}
