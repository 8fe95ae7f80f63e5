// Package report holds the presentation state of a post-session report and
// the certification action.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lexnova/lexnova/internal/api"
)

var (
	// ErrBlocked is returned when the gate refuses certification.
	ErrBlocked = errors.New("certification blocked")

	// ErrNeedsConfirmation is returned when the gate asks for review and
	// the caller has not confirmed.
	ErrNeedsConfirmation = errors.New("certification requires confirmation")

	// ErrCertifying is returned while a certification is running.
	ErrCertifying = errors.New("certification in progress")
)

// RiskBand buckets a risk score for display.
type RiskBand string

const (
	RiskLow    RiskBand = "low"
	RiskMedium RiskBand = "medium"
	RiskHigh   RiskBand = "high"
)

// BandFor returns low below 20, medium below 50, high otherwise.
func BandFor(score int) RiskBand {
	switch {
	case score < 20:
		return RiskLow
	case score < 50:
		return RiskMedium
	}
	return RiskHigh
}

// Certifier issues the certificate. *api.Client implements it.
type Certifier interface {
	CertifyReport(ctx context.Context, sessionID string) (*api.SessionReport, error)
}

// DefaultCertifyDelay is the simulated certification time used when no
// Certifier is wired.
const DefaultCertifyDelay = 2 * time.Second

// Snapshot is a consistent copy of the viewer state for rendering.
type Snapshot struct {
	Report            api.SessionReport
	Band              RiskBand
	Certifying        bool
	Certified         bool
	CertificationDate string
	Decision          Decision
	Err               string
}

// Viewer is the report screen's state. Certify runs off the UI loop, so
// all access is guarded.
type Viewer struct {
	certifier Certifier
	gate      *Gate
	delay     time.Duration
	now       func() time.Time

	mu         sync.Mutex
	report     api.SessionReport
	certifying bool
	decision   Decision
	err        string
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithCertifier makes Certify call the backend instead of simulating.
func WithCertifier(c Certifier) Option {
	return func(v *Viewer) { v.certifier = c }
}

// WithGate installs a certification policy.
func WithGate(g *Gate) Option {
	return func(v *Viewer) { v.gate = g }
}

// WithDelay sets the simulated certification delay.
func WithDelay(d time.Duration) Option {
	return func(v *Viewer) { v.delay = d }
}

// NewViewer creates a Viewer for report.
func NewViewer(report api.SessionReport, opts ...Option) *Viewer {
	v := &Viewer{
		report: report,
		delay:  DefaultCertifyDelay,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Snapshot returns the current state.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	r := v.report
	r.Transcript = append([]api.TranscriptEntry(nil), v.report.Transcript...)
	r.FraudAnalysis.Notes = append([]string(nil), v.report.FraudAnalysis.Notes...)
	return Snapshot{
		Report:            r,
		Band:              BandFor(v.report.FraudAnalysis.RiskScore),
		Certifying:        v.certifying,
		Certified:         v.report.Certified,
		CertificationDate: v.report.CertificationDate,
		Decision:          v.decision,
		Err:               v.err,
	}
}

// Review runs the gate and records its decision. Without a gate every
// report is allowed.
func (v *Viewer) Review(ctx context.Context) (Decision, error) {
	if v.gate == nil {
		v.mu.Lock()
		v.decision = DecisionAllow
		v.mu.Unlock()
		return DecisionAllow, nil
	}

	v.mu.Lock()
	report := v.report
	v.mu.Unlock()

	d, err := v.gate.Evaluate(ctx, report)
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.err = err.Error()
		return "", err
	}
	v.decision = d
	return d, nil
}

// Certify issues the certificate. The gate runs first: block refuses, and
// review refuses unless confirmed. The viewer shows certifying until the
// certifier (or the simulated delay) returns; on failure certified stays
// false and the error is recorded.
func (v *Viewer) Certify(ctx context.Context, confirmed bool) error {
	v.mu.Lock()
	if v.report.Certified {
		v.mu.Unlock()
		return nil
	}
	if v.certifying {
		v.mu.Unlock()
		return ErrCertifying
	}
	v.err = ""
	v.certifying = true
	sessionID := v.report.SessionID
	v.mu.Unlock()

	decision, err := v.Review(ctx)
	if err != nil {
		v.fail(err)
		return err
	}
	switch decision {
	case DecisionBlock:
		v.fail(fmt.Errorf("%w: coercion detected", ErrBlocked))
		return ErrBlocked
	case DecisionReview:
		if !confirmed {
			v.mu.Lock()
			v.certifying = false
			v.mu.Unlock()
			return ErrNeedsConfirmation
		}
	}

	var certified *api.SessionReport
	if v.certifier != nil {
		certified, err = v.certifier.CertifyReport(ctx, sessionID)
	} else {
		err = sleep(ctx, v.delay)
	}
	if err != nil {
		log.Printf("certify %s: %v", sessionID, err)
		v.fail(err)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.certifying = false
	if certified != nil {
		v.report = *certified
	}
	v.report.Certified = true
	if v.report.CertificationDate == "" {
		v.report.CertificationDate = v.now().Format("2006-01-02")
	}
	return nil
}

func (v *Viewer) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.certifying = false
	v.err = err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
