package hostrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedInvoke struct {
	cmd  string
	args map[string]any
}

type hostRecorder struct {
	mu      sync.Mutex
	invokes []recordedInvoke
	err     error
}

func (r *hostRecorder) invoke(_ context.Context, cmd string, args map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokes = append(r.invokes, recordedInvoke{cmd: cmd, args: args})
	return r.err
}

func newHostServer(t *testing.T, token string, rec *hostRecorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	path, handler := NewHostHandler(token, rec.invoke)
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewInvoker_Settings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{name: "valid", settings: map[string]any{"endpoint": "http://127.0.0.1:7422"}},
		{name: "missing endpoint", settings: map[string]any{}, wantErr: true},
		{name: "bad endpoint", settings: map[string]any{"endpoint": "not a url"}, wantErr: true},
		{name: "timeout too small", settings: map[string]any{"endpoint": "http://h", "timeout_ms": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := NewInvoker(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "rpc", inv.Name())
			assert.Equal(t, 3000, inv.config.TimeoutMs)
		})
	}
}

func TestInvoker_Invoke(t *testing.T) {
	rec := &hostRecorder{}
	server := newHostServer(t, "", rec)

	inv, err := NewInvoker(map[string]any{"endpoint": server.URL})
	require.NoError(t, err)

	err = inv.Invoke(context.Background(), "set_playback", map[string]any{
		"playing":  true,
		"progress": 12.5,
	})
	require.NoError(t, err)

	err = inv.Invoke(context.Background(), "set_metadata", map[string]any{"track": nil})
	require.NoError(t, err)

	require.Len(t, rec.invokes, 2)
	assert.Equal(t, "set_playback", rec.invokes[0].cmd)
	assert.Equal(t, map[string]any{"playing": true, "progress": 12.5}, rec.invokes[0].args)
	assert.Equal(t, "set_metadata", rec.invokes[1].cmd)
	assert.Equal(t, map[string]any{"track": nil}, rec.invokes[1].args)
}

func TestInvoker_Token(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{name: "wrong", token: "wrong"},
		{name: "missing", token: ""},
		{name: "prefix", token: "secre"},
		{name: "longer", token: "secret!"},
		{name: "match", token: "secret", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &hostRecorder{}
			server := newHostServer(t, "secret", rec)

			inv, err := NewInvoker(map[string]any{"endpoint": server.URL, "token": tt.token})
			require.NoError(t, err)
			err = inv.Invoke(context.Background(), "set_playback", map[string]any{"playing": false, "progress": nil})

			if !tt.wantOK {
				require.Error(t, err)
				assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
				assert.Empty(t, rec.invokes)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rec.invokes, 1)
		})
	}
}

func TestInvoker_HostError(t *testing.T) {
	rec := &hostRecorder{err: errors.New("media controls unavailable")}
	server := newHostServer(t, "", rec)

	inv, err := NewInvoker(map[string]any{"endpoint": server.URL})
	require.NoError(t, err)

	err = inv.Invoke(context.Background(), "set_playback", map[string]any{"playing": true, "progress": 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media controls unavailable")
}
