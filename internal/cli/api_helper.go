package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/agentdesk/workdir/internal/api"
	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/constants"
	"github.com/agentdesk/workdir/internal/events"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/progress"
	"github.com/agentdesk/workdir/internal/services"
	"github.com/agentdesk/workdir/internal/state"
)

// loadConfig loads the config file and applies environment and flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(serverURL, username, password)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// sessionOptions are the per-command knobs layered over the config.
type sessionOptions struct {
	StartPath string
	Confirmer state.Confirmer

	// OutDir overrides download_dir when set.
	OutDir    string
	Overwrite bool

	// Sort overrides the configured sort when By is set.
	Sort state.SortState

	Logger *logging.Logger
}

// session bundles everything one command needs to drive a browser.
type session struct {
	cfg     *config.Config
	client  *api.Client
	bus     *events.EventBus
	browser *state.Browser
	saver   *services.LocalSaver
	service *services.FileService
	logger  *logging.Logger

	mu       sync.Mutex
	uploadUI *progress.UploadUI
}

// newSession builds a closed browser over the configured server. The caller
// opens it and must call close when done.
func newSession(cfg *config.Config, opts sessionOptions) (*session, error) {
	log := opts.Logger
	if log == nil {
		log = GetLogger()
	}

	client, err := api.NewClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	sort, err := configuredSort(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Sort.By != "" {
		sort = opts.Sort
	}

	outDir := cfg.DownloadDir
	if opts.OutDir != "" {
		outDir = opts.OutDir
	}

	s := &session{
		cfg:    cfg,
		client: client,
		bus:    events.NewEventBus(constants.EventBusDefaultBuffer),
		logger: log,
	}
	s.saver = &services.LocalSaver{
		Dir:          outDir,
		Overwrite:    opts.Overwrite,
		ShowProgress: progress.IsTerminal(stderr),
		EventBus:     s.bus,
		Logger:       log,
	}
	s.browser = state.NewBrowser(client, state.Options{
		Logger:         log,
		EventBus:       s.bus,
		Confirmer:      opts.Confirmer,
		Saver:          s.saver,
		RequestTimeout: cfg.RequestTimeout,
		Sort:           sort,
		StartPath:      opts.StartPath,
		UploadProgress: s.wrapUploadPart,
	})
	s.service = services.NewFileService(s.browser, s.saver, log)

	return s, nil
}

// configuredSort turns the [browser] sort settings into a SortState.
func configuredSort(cfg *config.Config) (state.SortState, error) {
	by, err := state.ParseSortKey(cfg.SortBy)
	if err != nil {
		return state.SortState{}, err
	}
	dir, err := state.ParseSortDirection(cfg.SortDirection)
	if err != nil {
		return state.SortState{}, err
	}
	return state.SortState{By: by, Direction: dir}, nil
}

// beginUpload installs the per-file bars for the next upload. The returned
// function tears them down.
func (s *session) beginUpload(ui *progress.UploadUI) func() {
	s.mu.Lock()
	s.uploadUI = ui
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.uploadUI = nil
		s.mu.Unlock()
	}
}

func (s *session) wrapUploadPart(name string, size int64, r io.Reader) io.Reader {
	s.mu.Lock()
	ui := s.uploadUI
	s.mu.Unlock()
	if ui == nil {
		return r
	}
	return ui.WrapPart(name, size, r)
}

func (s *session) close() {
	s.browser.Close()
	s.bus.Close()
}
