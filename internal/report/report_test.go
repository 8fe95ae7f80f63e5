package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexnova/lexnova/internal/api"
)

func sampleReport() api.SessionReport {
	return api.SessionReport{
		SessionID: "sess_11223",
		Duration:  "14m 32s",
		FraudAnalysis: api.FraudAnalysis{
			RiskScore:            12,
			VoiceMatchConfidence: 98,
			Notes:                []string{"Voice biometrics matched ID records for both parties."},
		},
		Transcript: []api.TranscriptEntry{
			{ID: "1", Timestamp: "11:00:15", Speaker: "VeriBot", Role: "BOT", Text: "State your name for the record."},
			{ID: "2", Timestamp: "11:00:22", Speaker: "Han Solo", Role: "GROOM", Text: "Han Solo."},
		},
	}
}

type fakeCertifier struct {
	mu     sync.Mutex
	calls  int
	err    error
	gate   chan struct{}
	result *api.SessionReport
}

func (f *fakeCertifier) CertifyReport(ctx context.Context, sessionID string) (*api.SessionReport, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.result, f.err
}

func TestBandFor(t *testing.T) {
	cases := map[int]RiskBand{
		0:   RiskLow,
		19:  RiskLow,
		20:  RiskMedium,
		49:  RiskMedium,
		50:  RiskHigh,
		100: RiskHigh,
	}
	for score, want := range cases {
		assert.Equal(t, want, BandFor(score), "score %d", score)
	}
}

func TestCertifySimulated(t *testing.T) {
	v := NewViewer(sampleReport(), WithDelay(10*time.Millisecond))
	v.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, v.Certify(context.Background(), false))

	snap := v.Snapshot()
	assert.True(t, snap.Certified)
	assert.False(t, snap.Certifying)
	assert.Equal(t, "2026-03-01", snap.CertificationDate)
	assert.Empty(t, snap.Err)
}

func TestCertifyShowsCertifyingWhileRunning(t *testing.T) {
	fc := &fakeCertifier{gate: make(chan struct{}), result: &api.SessionReport{SessionID: "sess_11223", Certified: true, CertificationDate: "2026-03-02"}}
	v := NewViewer(sampleReport(), WithCertifier(fc))

	done := make(chan error, 1)
	go func() { done <- v.Certify(context.Background(), false) }()

	require.Eventually(t, func() bool { return v.Snapshot().Certifying }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, v.Certify(context.Background(), false), ErrCertifying)

	close(fc.gate)
	require.NoError(t, <-done)

	snap := v.Snapshot()
	assert.True(t, snap.Certified)
	assert.Equal(t, "2026-03-02", snap.CertificationDate)
	assert.Equal(t, 1, fc.calls)
}

func TestCertifyFailureStaysUncertified(t *testing.T) {
	fc := &fakeCertifier{err: errors.New("backend down")}
	v := NewViewer(sampleReport(), WithCertifier(fc))

	err := v.Certify(context.Background(), false)
	require.Error(t, err)

	snap := v.Snapshot()
	assert.False(t, snap.Certified)
	assert.False(t, snap.Certifying)
	assert.Equal(t, "backend down", snap.Err)
}

func TestCertifyAlreadyCertifiedIsNoop(t *testing.T) {
	r := sampleReport()
	r.Certified = true
	fc := &fakeCertifier{}
	v := NewViewer(r, WithCertifier(fc))

	require.NoError(t, v.Certify(context.Background(), false))
	assert.Zero(t, fc.calls)
}

func TestCertifyCancelled(t *testing.T) {
	v := NewViewer(sampleReport(), WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := v.Certify(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, v.Snapshot().Certified)
}

func TestGateDecisions(t *testing.T) {
	gate, err := NewGate(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	clean := sampleReport()
	d, err := gate.Evaluate(context.Background(), clean)
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, d)

	risky := sampleReport()
	risky.FraudAnalysis.RiskScore = 35
	d, err = gate.Evaluate(context.Background(), risky)
	require.NoError(t, err)
	assert.Equal(t, DecisionReview, d)

	flagged := sampleReport()
	flagged.Transcript[1].Flagged = true
	d, err = gate.Evaluate(context.Background(), flagged)
	require.NoError(t, err)
	assert.Equal(t, DecisionReview, d)

	coerced := sampleReport()
	coerced.FraudAnalysis.CoercionDetected = true
	coerced.FraudAnalysis.RiskScore = 90
	d, err = gate.Evaluate(context.Background(), coerced)
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, d)
}

func TestGateBlocksCertification(t *testing.T) {
	gate, err := NewGate(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	r := sampleReport()
	r.FraudAnalysis.CoercionDetected = true
	fc := &fakeCertifier{}
	v := NewViewer(r, WithGate(gate), WithCertifier(fc))

	err = v.Certify(context.Background(), true)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Zero(t, fc.calls)

	snap := v.Snapshot()
	assert.False(t, snap.Certified)
	assert.Equal(t, DecisionBlock, snap.Decision)
	assert.Contains(t, snap.Err, "coercion detected")
}

func TestGateReviewNeedsConfirmation(t *testing.T) {
	gate, err := NewGate(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	r := sampleReport()
	r.FraudAnalysis.VoiceMatchConfidence = 60
	fc := &fakeCertifier{}
	v := NewViewer(r, WithGate(gate), WithCertifier(fc))

	assert.ErrorIs(t, v.Certify(context.Background(), false), ErrNeedsConfirmation)
	assert.False(t, v.Snapshot().Certifying)
	assert.Zero(t, fc.calls)

	require.NoError(t, v.Certify(context.Background(), true))
	assert.True(t, v.Snapshot().Certified)
}

func TestNewGateRejectsBadPolicy(t *testing.T) {
	_, err := NewGate(context.Background(), "package lexnova.certification\n\ndecision = {")
	assert.Error(t, err)
}
