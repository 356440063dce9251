package application

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"pmu-monitor/internal/observability/metrics"
)

// Key is the ini key read by the acquisition side.
const Key = "protocol_used"

var (
	// ErrInvalidProtocol indicates a protocol name that cannot be written.
	ErrInvalidProtocol = errors.New("protocol: invalid name")
	// ErrNotConfigured indicates the config file has no protocol yet.
	ErrNotConfigured = errors.New("protocol: not configured")
)

var protocolName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Service reads and writes the active acquisition protocol in an ini file.
type Service struct {
	path string
	mu   sync.Mutex
}

// NewService constructs a Service backed by path.
func NewService(path string) (*Service, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("protocol service: empty config path")
	}
	return &Service{path: path}, nil
}

// Change validates the name and stores it under Key, keeping other keys.
func (s *Service) Change(protocol string) error {
	protocol = strings.TrimSpace(protocol)
	if !protocolName.MatchString(protocol) {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, protocol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(protocol)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.IncProtocolWrite(result)
	return err
}

func (s *Service) write(protocol string) error {
	f, err := ini.LooseLoad(s.path)
	if err != nil {
		return fmt.Errorf("protocol config load: %w", err)
	}
	f.Section(ini.DefaultSection).Key(Key).SetValue(protocol)
	if err := f.SaveTo(s.path); err != nil {
		return fmt.Errorf("protocol config save: %w", err)
	}
	return nil
}

// Current returns the configured protocol.
func (s *Service) Current() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := ini.LooseLoad(s.path)
	if err != nil {
		return "", fmt.Errorf("protocol config load: %w", err)
	}
	section := f.Section(ini.DefaultSection)
	if !section.HasKey(Key) || strings.TrimSpace(section.Key(Key).String()) == "" {
		return "", ErrNotConfigured
	}
	return section.Key(Key).String(), nil
}
