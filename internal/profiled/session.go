package profiled

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/generate"
	"github.com/GoSim-25-26J-441/serving-profiler/internal/objective"
	"github.com/GoSim-25-26J-441/serving-profiler/internal/results"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/utils"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionIDMissing   = errors.New("session_id is required")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrInvalidMeasurement = errors.New("invalid measurement")
)

const defaultListLimit = 50

// Proposal is a run config handed out for measurement
type Proposal struct {
	Seq       int              `json:"seq"`
	Phase     string           `json:"phase"`
	RunConfig models.RunConfig `json:"run_config"`
}

// ReportSummary describes how a batch of measurements was recorded
type ReportSummary struct {
	Seq     int  `json:"seq"`
	Passing int  `json:"passing"`
	Failing int  `json:"failing"`
	Absent  int  `json:"absent"`
	NewBest bool `json:"new_best"`
}

// SessionInfo is a point-in-time snapshot of a session
type SessionInfo struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Mode            string    `json:"mode"`
	Automatic       bool      `json:"automatic"`
	Models          []string  `json:"models"`
	Proposals       int       `json:"proposals"`
	Measurements    int       `json:"measurements"`
	Skipped         int       `json:"skipped"`
	Pending         *Proposal `json:"pending,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
}

// Session is one search over a profile. Calls on a session are serialized.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	profile   *config.Profile
	cmp       *objective.Comparator
	results   *results.Store
	orch      *generate.Orchestrator

	pending      *Proposal
	proposals    int
	measurements int
	skipped      int
	finished     bool
	lastErr      string
}

// info must be called with s.mu held
func (s *Session) info() SessionInfo {
	info := SessionInfo{
		ID:              s.id,
		State:           s.orch.State().String(),
		Mode:            s.profile.Search.Mode,
		Automatic:       s.profile.IsAutomaticSearch(),
		Models:          s.profile.ModelNames(),
		Proposals:       s.proposals,
		Measurements:    s.measurements,
		Skipped:         s.orch.Skipped(),
		Error:           s.lastErr,
		CreatedAtUnixMs: s.createdAt.UnixMilli(),
	}
	if s.pending != nil {
		p := *s.pending
		info.Pending = &p
	}
	return info
}

// SessionStore keeps search sessions in memory. Distinct sessions proceed
// independently.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *Metrics
}

// NewSessionStore creates an empty store; metrics may be nil
func NewSessionStore(metrics *Metrics) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		metrics:  metrics,
	}
}

// CreateFromYAML parses a profile and starts a session for it
func (s *SessionStore) CreateFromYAML(profileYAML string) (SessionInfo, error) {
	profile, err := config.ParseProfileYAMLString(profileYAML)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return s.Create(profile)
}

// Create starts a session for a parsed profile
func (s *SessionStore) Create(profile *config.Profile) (SessionInfo, error) {
	if profile == nil {
		return SessionInfo{}, fmt.Errorf("%w: profile is required", ErrInvalidProfile)
	}
	if len(profile.Models) == 0 {
		return SessionInfo{}, fmt.Errorf("%w: at least one model is required", ErrInvalidProfile)
	}
	cmp, err := objective.New(profile)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	store := results.NewStore(cmp)
	orch, err := generate.New(profile, cmp, store)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	sess := &Session{
		id:        utils.NewSessionID(),
		createdAt: time.Now().UTC(),
		profile:   profile,
		cmp:       cmp,
		results:   store,
		orch:      orch,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.sessionCreated()

	logger.Info("session created",
		"session_id", sess.id,
		"mode", profile.Search.Mode,
		"automatic", profile.IsAutomaticSearch(),
		"models", len(profile.Models))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(), nil
}

func (s *SessionStore) lookup(id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionIDMissing
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Get returns a snapshot of a session
func (s *SessionStore) Get(id string) (SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(), nil
}

// List returns up to limit sessions, oldest first
func (s *SessionStore) List(limit int) []SessionInfo {
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	// UUIDv7 ids sort by creation time
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		out = append(out, sess.info())
		sess.mu.Unlock()
	}
	return out
}

// Next hands out the next run config of a session. ok is false once the
// search is exhausted.
func (s *SessionStore) Next(id string) (*Proposal, bool, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	rc, ok, err := sess.orch.Next()
	s.recordSkipped(sess)
	if err != nil {
		s.recordError(sess, "next", err)
		return nil, false, err
	}
	if !ok {
		if !sess.finished {
			sess.finished = true
			logger.Info("session search finished",
				"session_id", sess.id,
				"proposals", sess.proposals,
				"measurements", sess.measurements,
				"skipped", sess.orch.Skipped())
		}
		return nil, false, nil
	}

	sess.proposals++
	sess.pending = &Proposal{
		Seq:       sess.proposals,
		Phase:     sess.orch.ProposalState().String(),
		RunConfig: rc,
	}
	s.metrics.proposal(sess.pending.Phase)
	logger.Debug("proposal issued",
		"session_id", sess.id,
		"seq", sess.pending.Seq,
		"phase", sess.pending.Phase,
		"run_config", rc.String())

	p := *sess.pending
	return &p, true, nil
}

// recordSkipped must be called with sess.mu held
func (s *SessionStore) recordSkipped(sess *Session) {
	if n := sess.orch.Skipped(); n > sess.skipped {
		s.metrics.skippedProposals(n - sess.skipped)
		sess.skipped = n
	}
}

// recordError must be called with sess.mu held
func (s *SessionStore) recordError(sess *Session, op string, err error) {
	sess.lastErr = err.Error()
	if errors.Is(err, generate.ErrProtocolViolation) {
		s.metrics.protocolViolation()
	}
	logger.Warn("session call failed", "session_id", sess.id, "op", op, "error", err)
}

// Report records the measurements of the outstanding proposal and feeds them
// to the search. A nil entry marks a run that produced no usable result.
func (s *SessionStore) Report(id string, measurements []*models.Measurement) (ReportSummary, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return ReportSummary{}, err
	}
	for i, m := range measurements {
		if m != nil && len(m.Models) == 0 {
			return ReportSummary{}, fmt.Errorf("%w: measurement %d has no models", ErrInvalidMeasurement, i)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.orch.Err(); err != nil {
		s.recordError(sess, "report", err)
		return ReportSummary{}, err
	}
	if sess.pending == nil || len(measurements) == 0 {
		// the orchestrator rejects the call and stays failed
		err := sess.orch.Feed(measurements)
		if err == nil {
			err = fmt.Errorf("%w: report without an outstanding proposal", generate.ErrProtocolViolation)
		}
		s.recordError(sess, "report", err)
		return ReportSummary{}, err
	}

	pending := sess.pending
	summary := ReportSummary{Seq: pending.Seq}
	for _, m := range measurements {
		if m == nil {
			summary.Absent++
			s.metrics.measurement(OutcomeAbsent)
			continue
		}
		best, err := sess.results.Add(pending.RunConfig, m)
		if err != nil {
			return ReportSummary{}, fmt.Errorf("%w: %w", ErrInvalidMeasurement, err)
		}
		summary.NewBest = summary.NewBest || best
		if sess.cmp.Passes(m) {
			summary.Passing++
			s.metrics.measurement(OutcomePassing)
		} else {
			summary.Failing++
			s.metrics.measurement(OutcomeFailing)
		}
	}

	if err := sess.orch.Feed(measurements); err != nil {
		s.recordError(sess, "report", err)
		return ReportSummary{}, err
	}
	sess.pending = nil
	sess.measurements += len(measurements)
	return summary, nil
}

// Top returns the n best results of a model, or of every model when model is
// empty. n defaults to the profile's num_configs_per_model.
func (s *SessionStore) Top(id, model string, n int) ([]results.Result, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = sess.profile.Search.NumConfigsPerModel
	}
	if model != "" {
		return sess.results.TopN(model, n, false), nil
	}
	var out []results.Result
	for _, name := range sess.results.ModelNames() {
		out = append(out, sess.results.TopN(name, n, false)...)
	}
	return out, nil
}

// Delete removes a session
func (s *SessionStore) Delete(id string) error {
	if id == "" {
		return ErrSessionIDMissing
	}
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.metrics.sessionDeleted()
	logger.Info("session deleted", "session_id", id)
	return nil
}

// Len returns the number of sessions held
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
