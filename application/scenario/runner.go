// Package scenario runs named storefront workflows step by step and records
// the outcome of every run.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"shopflow/application/pageobject"
	"shopflow/application/pages"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Step is one named action of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, s *Session) error
}

// Scenario is an ordered list of steps.
type Scenario struct {
	Name        string
	Description string
	Steps       []Step
}

// Session is the state shared by the steps of one run. Page objects are
// built on first use and reused by later steps.
type Session struct {
	Driver    interfaces.Driver
	BaseURL   string
	Log       logrus.FieldLogger
	Overrides map[string]entities.SelectorMap

	home       *pages.Home
	snowboards *pages.Snowboards
}

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (s *Session) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.BaseURL + path
}

func (s *Session) pageOptions(page string) []pageobject.Option {
	opts := []pageobject.Option{pageobject.WithLogger(s.Log.WithField("page", page))}
	if o := s.Overrides[page]; len(o) > 0 {
		opts = append(opts, pageobject.WithOverrides(o))
	}
	return opts
}

// Home returns the session's home page object.
func (s *Session) Home() (*pages.Home, error) {
	if s.home == nil {
		p, err := pages.NewHome(s.Driver, s.pageOptions("home")...)
		if err != nil {
			return nil, err
		}
		s.home = p
	}
	return s.home, nil
}

// Snowboards returns the session's snowboards page object.
func (s *Session) Snowboards() (*pages.Snowboards, error) {
	if s.snowboards == nil {
		p, err := pages.NewSnowboards(s.Driver, s.pageOptions("snowboards")...)
		if err != nil {
			return nil, err
		}
		s.snowboards = p
	}
	return s.snowboards, nil
}

// Runner executes scenarios against one driver.
type Runner struct {
	driver    interfaces.Driver
	baseURL   string
	store     interfaces.RunStore
	log       *logrus.Logger
	overrides map[string]entities.SelectorMap
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore persists every finished run.
func WithStore(store interfaces.RunStore) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithLogger sets the runner logger.
func WithLogger(log *logrus.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithSelectorOverrides replaces page selectors, keyed by page name.
func WithSelectorOverrides(overrides map[string]entities.SelectorMap) RunnerOption {
	return func(r *Runner) { r.overrides = overrides }
}

// NewRunner creates a runner for driver against baseURL.
func NewRunner(driver interfaces.Driver, baseURL string, opts ...RunnerOption) (*Runner, error) {
	if driver == nil {
		return nil, errs.New(errs.InvalidArgument, "scenario runner requires a driver")
	}
	if baseURL == "" {
		return nil, errs.New(errs.InvalidArgument, "scenario runner requires a base URL")
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	r := &Runner{
		driver:  driver,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     l,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// stateSaver is implemented by drivers that persist browser state.
type stateSaver interface {
	SaveState() error
}

// Run executes sc step by step. It stops at the first failing step and marks
// the remaining steps skipped. The returned record is also appended to the
// store when one is configured; the error is non-nil unless the run passed.
func (r *Runner) Run(ctx context.Context, sc Scenario) (entities.RunRecord, error) {
	if len(sc.Steps) == 0 {
		return entities.RunRecord{}, errs.New(errs.InvalidArgument, fmt.Sprintf("scenario %q has no steps", sc.Name))
	}

	log := r.log.WithFields(logrus.Fields{"scenario": sc.Name, "driver": r.driver.Name()})
	session := &Session{
		Driver:    r.driver,
		BaseURL:   r.baseURL,
		Log:       log,
		Overrides: r.overrides,
	}
	record := entities.RunRecord{
		ID:        uuid.NewString(),
		Scenario:  sc.Name,
		Driver:    r.driver.Name(),
		BaseURL:   r.baseURL,
		Status:    entities.RunStatusPassed,
		StartedAt: time.Now(),
		Steps:     make([]entities.StepResult, 0, len(sc.Steps)),
	}

	log.Infof("Starting scenario: %s", sc.Name)

	var runErr error
	for i, step := range sc.Steps {
		if runErr == nil && ctx.Err() != nil {
			record.Status = entities.RunStatusCancelled
			runErr = fmt.Errorf("scenario canceled before step %q: %w", step.Name, ctx.Err())
		}
		if runErr != nil {
			record.Steps = append(record.Steps, entities.StepResult{Name: step.Name, Status: entities.StepSkipped})
			continue
		}

		log.Infof("Step %d/%d: %s", i+1, len(sc.Steps), step.Name)
		start := time.Now()
		err := step.Run(ctx, session)
		result := entities.StepResult{Name: step.Name, Status: entities.StepPassed, Duration: time.Since(start)}
		if err != nil {
			result.Status = entities.StepFailed
			result.Error = err.Error()
			if ctx.Err() != nil {
				record.Status = entities.RunStatusCancelled
				runErr = fmt.Errorf("scenario canceled at step %q: %w", step.Name, err)
			} else {
				record.Status = entities.RunStatusFailed
				runErr = fmt.Errorf("step %q failed: %w", step.Name, err)
			}
			log.WithError(err).Errorf("Step failed: %s", step.Name)
		} else {
			log.WithField("duration", result.Duration).Infof("Step passed: %s", step.Name)
		}
		record.Steps = append(record.Steps, result)
	}

	if saver, ok := r.driver.(stateSaver); ok {
		if err := saver.SaveState(); err != nil {
			log.Warnf("Failed to save browser state: %v", err)
		}
	}

	record.FinishedAt = time.Now()
	if runErr != nil {
		record.Error = runErr.Error()
	}
	log.WithField("status", record.Status).Infof("Finished scenario: %s", sc.Name)

	if r.store != nil {
		if err := r.store.Append(record); err != nil {
			return record, errors.Join(runErr, fmt.Errorf("failed to store run: %w", err))
		}
	}
	return record, runErr
}
