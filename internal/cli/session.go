package cli

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rileyhilliard/gpuwatch/internal/config"
	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/hostalias"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/monitor"
	"github.com/rileyhilliard/gpuwatch/internal/store"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	"github.com/rileyhilliard/gpuwatch/internal/util"
)

// dialerFor builds the socket dialer for a policy. Tests replace it.
var dialerFor = func(p telemetry.Policy) telemetry.Dialer {
	return telemetry.NewWebSocketDialer(p)
}

// aliasConfigPath is the SSH config consulted for host aliases. Tests replace it.
var aliasConfigPath = hostalias.DefaultPath

// session is everything a command needs: the loaded config, the open store
// and a manager restored from it.
type session struct {
	cfg      *config.Config
	cfgPath  string
	store    store.Store
	state    store.State
	mgr      *telemetry.Manager
	feed     *telemetry.ChannelFeed // nil unless sessionOptions.feed
	registry *prometheus.Registry
	aliases  *hostalias.Resolver // nil when ~/.ssh/config could not be read
	log      logger.Logger
}

type sessionOptions struct {
	// feed wires a ChannelFeed sized by feed_buffer into the manager.
	feed bool
	// override adjusts the loaded config before validation (command flags).
	override func(cfg *config.Config) error
	// configOnly skips the store and manager.
	configOnly bool
}

func openSession(opts sessionOptions) (*session, error) {
	log := logger.Default()

	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.override != nil {
		if err := opts.override(cfg); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, cfgPath: path, log: log}
	if opts.configOnly {
		return s, nil
	}

	st, err := store.Open(store.Options{Backend: cfg.Store.Backend, Path: cfg.Store.Path, Logger: logger.WithPrefix(log, "[store]")})
	if err != nil {
		return nil, err
	}
	state, err := st.Load()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s.store = st
	s.state = state

	policy := cfg.Policy()
	s.registry = prometheus.NewRegistry()
	mopts := []telemetry.Option{
		telemetry.WithDialer(dialerFor(policy)),
		telemetry.WithPersister(st),
		telemetry.WithMetrics(telemetry.NewMetrics(s.registry)),
		telemetry.WithLogger(logger.WithPrefix(log, "[conn]")),
	}
	if opts.feed {
		s.feed = telemetry.NewChannelFeed(cfg.FeedBuffer)
		mopts = append(mopts, telemetry.WithFeed(s.feed))
	}
	if r, err := hostalias.Load(aliasConfigPath(), log); err != nil {
		log.Warn("ignoring SSH config: %v", err)
	} else {
		s.aliases = r
	}
	if cfg.ResolveSSHAliases && s.aliases != nil {
		mopts = append(mopts, telemetry.WithResolver(s.aliases.Resolve))
	}

	s.mgr = telemetry.NewManager(policy, mopts...)
	if err := s.mgr.Restore(state.Connections, state.Counter); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts the manager down, then the store.
func (s *session) Close() error {
	var err error
	if s.mgr != nil {
		err = s.mgr.Close()
	}
	if s.store != nil {
		if cerr := s.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// dialURL is the URL the manager would dial for host and port.
func (s *session) dialURL(host, port string) string {
	if s.cfg.ResolveSSHAliases {
		host = s.aliases.Resolve(host)
	}
	return telemetry.SocketURL(host, port)
}

// lookupConnection finds a connection by id or name.
func (s *session) lookupConnection(ref string) (telemetry.ConnectionInfo, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		if c, ok := s.mgr.Get(id); ok {
			return c, nil
		}
	}
	conns := s.mgr.Connections()
	for _, c := range conns {
		if ref == c.Name {
			return c, nil
		}
	}
	names := make([]string, 0, len(conns))
	for _, c := range conns {
		names = append(names, c.Name)
	}
	suggestion := "Saved connections: " + util.JoinOrDefault(names, "none yet. Add one with: gpuwatch conn add")
	return telemetry.ConnectionInfo{}, errors.NewValidation("No connection named or numbered '"+ref+"'", suggestion)
}

// thresholdsFrom maps configured severity levels onto the dashboard's.
func thresholdsFrom(t config.ThresholdsConfig) monitor.Thresholds {
	level := func(v config.ThresholdValues) monitor.Level {
		return monitor.Level{Warning: float64(v.Warning), Critical: float64(v.Critical)}
	}
	return monitor.Thresholds{
		Utilization: level(t.Utilization),
		Memory:      level(t.Memory),
		Temperature: level(t.Temperature),
	}
}
