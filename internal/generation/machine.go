package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"promptsmith/internal/domain"
	"promptsmith/internal/imageenc"
	"promptsmith/internal/promptparse"
	"promptsmith/internal/promptreq"
	"promptsmith/internal/providers/prompt"
	"promptsmith/internal/upload"
)

const (
	msgNoImage      = "Please upload an image first."
	msgNoCredential = "Please enter your Gemini API key first."
)

type State string

const (
	StateIdle      State = "idle"
	StateInFlight  State = "in_flight"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Outcome is the single live status of generation. Prompts is set only when
// succeeded; Kind and Message only when failed.
type Outcome struct {
	ID         string      `json:"id,omitempty"`
	State      State       `json:"state"`
	Prompts    []string    `json:"prompts,omitempty"`
	Kind       domain.Kind `json:"error_kind,omitempty"`
	Message    string      `json:"error,omitempty"`
	Provider   string      `json:"provider,omitempty"`
	Requested  int         `json:"requested,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

func (o Outcome) clone() Outcome {
	if o.Prompts != nil {
		o.Prompts = append([]string(nil), o.Prompts...)
	}
	return o
}

// CredentialSource yields the stored API key, if any.
type CredentialSource interface {
	Get(ctx context.Context) (string, bool)
}

// Input is one user-triggered generate action.
type Input struct {
	Image    *upload.Image
	Count    int
	Category string
	Suffix   string
}

type Options struct {
	Client      prompt.Client
	Credentials CredentialSource
	// MaxCount bounds the requested count; zero means promptreq.MaxCount.
	MaxCount int
	// Timeout bounds one outbound call; zero means no bound beyond the client's.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Machine runs at most one generation at a time and owns the live Outcome.
type Machine struct {
	client  prompt.Client
	creds   CredentialSource
	builder promptreq.Builder
	timeout time.Duration
	logger  zerolog.Logger

	sem     *semaphore.Weighted
	mu      sync.Mutex
	outcome Outcome
	now     func() time.Time
}

func NewMachine(opts Options) (*Machine, error) {
	if opts.Client == nil {
		return nil, errors.New("generation: client is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("generation: credential source is required")
	}
	return &Machine{
		client:  opts.Client,
		creds:   opts.Credentials,
		builder: promptreq.Builder{MaxCount: opts.MaxCount, Structured: opts.Client.SupportsSchema()},
		timeout: opts.Timeout,
		logger:  opts.Logger.With().Str("component", "generation").Str("provider", opts.Client.Name()).Logger(),
		sem:     semaphore.NewWeighted(1),
		outcome: Outcome{State: StateIdle},
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// MaxCount returns the upper bound applied to requested counts.
func (m *Machine) MaxCount() int {
	if m.builder.MaxCount <= 0 || m.builder.MaxCount > promptreq.MaxCount {
		return promptreq.MaxCount
	}
	return m.builder.MaxCount
}

// Current returns a copy of the live outcome.
func (m *Machine) Current() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome.clone()
}

// Reset returns the machine to idle, dropping any result or error. It does
// nothing while a generation is in flight and reports whether it reset.
func (m *Machine) Reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome.State == StateInFlight {
		return false
	}
	m.outcome = Outcome{State: StateIdle}
	return true
}

// Generate runs one attempt to completion. Guard failures and ErrBusy are
// returned as errors and leave the outcome untouched; every other failure is
// recorded in the returned Failed outcome.
func (m *Machine) Generate(ctx context.Context, in Input) (Outcome, error) {
	credential, ok := m.creds.Get(ctx)
	if !ok {
		return Outcome{}, domain.NewError(domain.KindAuth, msgNoCredential, nil)
	}
	if in.Image == nil || len(in.Image.Data) == 0 {
		return Outcome{}, domain.NewError(domain.KindValidation, msgNoImage, nil)
	}
	if !m.sem.TryAcquire(1) {
		m.logger.Debug().Msg("generate ignored; another attempt is in flight")
		return Outcome{}, domain.ErrBusy
	}
	defer m.sem.Release(1)

	started := m.now()
	attempt := Outcome{
		ID:        uuid.NewString(),
		State:     StateInFlight,
		Provider:  m.client.Name(),
		Requested: in.Count,
		StartedAt: &started,
	}
	m.set(attempt)

	log := m.logger.With().Str("attempt_id", attempt.ID).Int("count", in.Count).Logger()
	log.Info().Msg("generation started")

	prompts, err := m.run(ctx, in, credential)
	finished := m.now()
	attempt.FinishedAt = &finished
	took := finished.Sub(started)
	if err != nil {
		attempt.State = StateFailed
		attempt.Kind = domain.KindOf(err)
		attempt.Message = domain.UserMessage(err)
		log.Warn().Err(err).Str("kind", string(attempt.Kind)).Dur("took", took).Msg("generation failed")
	} else {
		attempt.State = StateSucceeded
		attempt.Prompts = prompts
		log.Info().Int("prompts", len(prompts)).Dur("took", took).Msg("generation succeeded")
	}
	m.set(attempt)
	return attempt.clone(), nil
}

func (m *Machine) run(ctx context.Context, in Input, credential string) (prompts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			prompts = nil
			err = domain.NewError(domain.KindUpstream, "Generation failed unexpectedly.", fmt.Errorf("panic: %v", r))
		}
	}()

	encoded, err := imageenc.EncodeBytes(in.Image.Data, in.Image.MIMEType)
	if err != nil {
		return nil, err
	}
	req, err := m.builder.Build(promptreq.Input{
		Image:    encoded,
		Count:    in.Count,
		Category: in.Category,
		Suffix:   in.Suffix,
	})
	if err != nil {
		return nil, err
	}

	// A sent request runs to completion even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.timeout)
		defer cancel()
	}
	raw, err := m.client.Send(callCtx, req, credential)
	if err != nil {
		return nil, err
	}
	return promptparse.Parse(req.Mode, raw, req.Count)
}

func (m *Machine) set(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = o.clone()
}
