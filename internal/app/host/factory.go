package host

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tome/internal/infra/config"
	"github.com/osa030/tome/internal/infra/hostrpc"
)

// NewFromConfig creates the host bridge from configuration. Without any
// configured host the log backend is used.
func NewFromConfig(hosts []config.HostConfig, hub *Hub) (*Multi, error) {
	if len(hosts) == 0 {
		zlog.Warn().Msg("no hosts configured, falling back to the log host")
		hosts = []config.HostConfig{{Type: "log"}}
	}

	backends := make([]Invoker, 0, len(hosts))

	for i, hcfg := range hosts {
		var backend Invoker
		var err error
		zlog.Debug().Msgf("creating host backend: index=%d type=%s", i+1, hcfg.Type)
		switch hcfg.Type {
		case "log":
			backend, err = NewLogBackend(hcfg.Settings)

		case "rpc":
			backend, err = hostrpc.NewInvoker(hcfg.Settings)

		case "notify":
			backend, err = NewNotifyBackend(hcfg.Settings)

		case "lastfm":
			backend, err = NewLastFmBackend(hcfg.Settings)

		default:
			return nil, errors.Newf("unsupported host type: %s (host index %d)", hcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create host (index %d, type %s)", i, hcfg.Type)
		}

		backends = append(backends, backend)

		zlog.Info().Msgf("registered host backend: index=%d type=%s", i+1, backend.Name())
	}

	return NewMulti(hub, backends...), nil
}
