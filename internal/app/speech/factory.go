package speech

import (
	"io"
	"runtime"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/infra/config"
)

// Options carries dependencies shared by engine factories.
type Options struct {
	Output io.Writer // Where engines that print write to
}

// Factory builds an engine from its settings.
type Factory func(settings map[string]any, opts Options) (Engine, error)

// Registration describes a registered engine type.
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// registry holds registered engine factories.
var registry = make(map[string]Registration)

// Register registers an engine factory.
func Register(name, description string, factory Factory) {
	registry[name] = Registration{
		Name:        name,
		Description: description,
		Factory:     factory,
	}
}

// Registered returns all registered engines sorted by name.
func Registered() []Registration {
	regs := make([]Registration, 0, len(registry))
	for _, r := range registry {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })
	return regs
}

func init() {
	Register("espeak", "eSpeak / eSpeak NG subprocess", newESpeakEngine)
	Register("say", "macOS say subprocess", newSayEngine)
	Register("command", "custom command, {text} is replaced by the line", newCustomCommandEngine)
	Register("simulated", "prints lines and waits as long as reading them takes", newSimulated)
}

// NewFromConfig creates the first engine that can be built, trying the
// configured engines in order.
func NewFromConfig(engines []config.EngineConfig, opts Options) (Engine, error) {
	if len(engines) == 0 {
		return nil, errors.New("no speech engines configured")
	}

	for i, ecfg := range engines {
		reg, ok := registry[ecfg.Type]
		if !ok {
			return nil, errors.Newf("unsupported engine type: %s (engine index %d)", ecfg.Type, i)
		}

		zlog.Debug().Msgf("creating speech engine: index=%d type=%s settings=%+v", i+1, ecfg.Type, ecfg.Settings)
		engine, err := reg.Factory(ecfg.Settings, opts)
		if err != nil {
			zlog.Warn().Msgf("speech engine unavailable, trying next: type=%s error=%v", ecfg.Type, err)
			continue
		}

		zlog.Info().Msgf("using speech engine: index=%d type=%s", i+1, ecfg.Type)
		return engine, nil
	}

	return nil, errors.Wrap(ErrNotAvailable, "all configured speech engines failed")
}

// decodeSettings decodes, defaults and validates engine settings into out.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

func newESpeakEngine(settings map[string]any, _ Options) (Engine, error) {
	var s CommandSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}

	binary, err := resolveBinary(s.Binary, "espeak-ng", "espeak")
	if err != nil {
		return nil, err
	}
	return NewCommandEngine("espeak", binary, s.Args), nil
}

func newSayEngine(settings map[string]any, _ Options) (Engine, error) {
	if runtime.GOOS != "darwin" {
		return nil, errors.Wrap(ErrNotAvailable, "say is only available on macOS")
	}

	var s CommandSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}

	binary, err := resolveBinary(s.Binary, "say")
	if err != nil {
		return nil, err
	}
	return NewCommandEngine("say", binary, s.Args), nil
}

// customCommandSettings is CommandSettings with a mandatory binary.
type customCommandSettings struct {
	Binary string   `mapstructure:"binary" validate:"required"`
	Args   []string `mapstructure:"args"`
}

func newCustomCommandEngine(settings map[string]any, _ Options) (Engine, error) {
	var s customCommandSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}

	binary, err := resolveBinary(s.Binary)
	if err != nil {
		return nil, err
	}
	return NewCommandEngine("command", binary, s.Args), nil
}

func newSimulated(settings map[string]any, opts Options) (Engine, error) {
	var s SimulatedSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}

	out := opts.Output
	if s.Quiet {
		out = nil
	}
	return NewSimulatedEngine(s.WordsPerMinute, out), nil
}

// resolveBinary looks up the configured binary, or the first available candidate.
func resolveBinary(configured string, candidates ...string) (string, error) {
	if configured != "" {
		return findExecutable(configured)
	}
	return findExecutable(candidates...)
}
