package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/minewatch/minewatch/analysis"
	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
	"github.com/minewatch/minewatch/retrieval"
	"github.com/minewatch/minewatch/store"
	"github.com/minewatch/minewatch/workflow"
)

// Workflow step names.
const (
	stateExtract        workflow.State = "extract"
	stateCheckDuplicate workflow.State = "check_duplicate"
	stateAddToDB        workflow.State = "add_to_db"

	stateCollect     workflow.State = "collect"
	stateRequestScan workflow.State = "request_news_scan"
	stateWaitScan    workflow.State = "wait_for_news_scan"
	stateUpdateDB    workflow.State = "update_db"
)

// duplicateWindowDays is the ± window for the fuzzy duplicate check.
const duplicateWindowDays = 3

// AnalysisOptions configures an IncidentAnalysis agent.
type AnalysisOptions struct {
	// Locator, when set, enriches missing district/state on news-derived
	// records.
	Locator core.Locator
	// Index, when set, receives a context block for every committed record.
	Index    *retrieval.Index
	Semantic core.SemanticRetriever
	Keyword  core.KeywordRetriever

	ScanTimeout      time.Duration
	AnalysisSchedule string
	AuditSchedule    string
	AuditWindowDays  int
	DataDir          string
	HistoryLimit     int
	MaxAlerts        int
	Logger           *logging.MineWatchLogger
}

// IncidentAnalysis consumes discovery events, drives the verification
// workflows, answers conversational queries and runs the periodic analysis
// and audit jobs.
type IncidentAnalysis struct {
	Base
	store     core.Store
	extractor core.Extractor
	collector core.Collector
	gen       core.Generator
	opts      AnalysisOptions

	pending    *waiters[core.ScanResults]
	newsFlow   *workflow.Machine[newsRun]
	reportFlow *workflow.Machine[reportRun]
	gron       *gronx.Gronx
	handlers   sync.WaitGroup

	histMu  sync.Mutex
	history []chatTurn
}

type chatTurn struct {
	Role    string
	Content string
}

type newsRun struct {
	article  core.Article
	cand     core.IncidentCandidate
	recordID string
}

type reportRun struct {
	link     core.ReportLink
	rec      *core.IncidentRecord
	corrID   string
	wait     <-chan core.ScanResults
	articles []core.Article
}

var _ core.Agent = (*IncidentAnalysis)(nil)

// NewIncidentAnalysis builds the agent and registers its subscriptions.
func NewIncidentAnalysis(bus core.Bus, st core.Store, extractor core.Extractor, collector core.Collector, gen core.Generator, optFns ...func(*AnalysisOptions)) *IncidentAnalysis {
	opts := AnalysisOptions{
		ScanTimeout:      60 * time.Second,
		AnalysisSchedule: "0 * * * *",
		AuditSchedule:    "0 6 * * *",
		AuditWindowDays:  365,
		HistoryLimit:     10,
		MaxAlerts:        5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &IncidentAnalysis{
		Base:      NewBase("incident_analysis", bus, opts.Logger),
		store:     st,
		extractor: extractor,
		collector: collector,
		gen:       gen,
		opts:      opts,
		pending:   newWaiters[core.ScanResults](),
		gron:      gronx.New(),
	}

	a.newsFlow = workflow.New[newsRun]("news-incident", stateExtract).
		AddStep(stateExtract, a.stepExtract).
		AddStep(stateCheckDuplicate, a.stepCheckDuplicate).
		AddStep(stateAddToDB, a.stepAddToDB)

	a.reportFlow = workflow.New[reportRun]("report-verification", stateCollect).
		AddStep(stateCollect, a.stepCollect).
		AddStep(stateRequestScan, a.stepRequestScan).
		AddStep(stateWaitScan, a.stepWaitScan).
		AddStep(stateUpdateDB, a.stepUpdateDB)

	a.Subscribe(core.TopicNewsArticle, a.handleArticle)
	a.Subscribe(core.TopicReportDiscovered, a.handleReport)
	a.Subscribe(core.TopicScanResults, a.handleScanResults)
	a.Subscribe(core.TopicQuerySubmitted, a.handleQuery)
	return a
}

// Start launches the periodic-job loop.
func (a *IncidentAnalysis) Start(ctx context.Context) error { return a.launch(ctx, a.Run) }

// Stop cancels the run loop and waits for in-flight workflow goroutines.
func (a *IncidentAnalysis) Stop() error {
	err := a.Base.Stop()
	a.handlers.Wait()
	return err
}

// News-article workflow.

func (a *IncidentAnalysis) stepExtract(ctx context.Context, s *newsRun) (workflow.State, error) {
	cand, err := a.extractor.ExtractIncident(ctx, s.article)
	if err != nil {
		return "", err
	}
	s.cand = cand
	return stateCheckDuplicate, nil
}

func (a *IncidentAnalysis) stepCheckDuplicate(ctx context.Context, s *newsRun) (workflow.State, error) {
	if s.cand.Err != "" {
		a.logger.Warn("extraction degraded for %s: %s", s.article.URL, s.cand.Err)
		return stateAddToDB, nil
	}
	n, err := a.store.CountSimilar(ctx, core.DuplicateQuery{
		MineName: s.cand.MineName,
		District: s.cand.District,
		State:    s.cand.State,
		Date:     s.cand.IncidentDate,
	})
	if err != nil {
		return "", err
	}
	if n > 0 {
		return workflow.EndDuplicate, nil
	}
	return stateAddToDB, nil
}

func (a *IncidentAnalysis) stepAddToDB(ctx context.Context, s *newsRun) (workflow.State, error) {
	district, state := s.cand.District, s.cand.State
	if (district == "" || state == "") && s.cand.MineName != "" && a.opts.Locator != nil {
		if d, st, ok := a.opts.Locator.Locate(ctx, s.cand.MineName); ok {
			if district == "" {
				district = d
			}
			if state == "" {
				state = st
			}
		}
	}

	status := core.VerificationUnverifiedNews
	if s.cand.Err != "" {
		status = core.VerificationError
	}

	now := time.Now().UTC()
	rec := core.IncidentRecord{
		DateReported: now.Format("2006-01-02"),
		AccidentDate: s.cand.IncidentDate,
		Mine: core.MineDetails{
			Name:     s.cand.MineName,
			District: district,
			State:    state,
		},
		Incident: core.IncidentDetails{
			Fatalities: casualties(s.cand.Fatalities),
			Injuries:   casualties(s.cand.Injuries),
			BriefCause: s.cand.BriefCause,
			CauseCode:  analysis.ClassifyCause(s.cand.BriefCause),
		},
		SourceURL: s.article.URL,
		Summary:   s.article.Summary,
		CreatedAt: now,
		Verification: core.Verification{
			Status:    status,
			Timestamp: now,
		},
		RawTitle: s.article.Title,
	}

	id, err := a.store.Insert(ctx, rec)
	if err != nil {
		return "", err
	}
	s.recordID = id
	a.indexRecord(ctx, id, rec)
	return workflow.EndCommitted, nil
}

func casualties(count *int) []core.Casualty {
	if count == nil || *count <= 0 {
		return []core.Casualty{}
	}
	return []core.Casualty{{Count: *count}}
}

// Government-report workflow.

func (a *IncidentAnalysis) stepCollect(ctx context.Context, s *reportRun) (workflow.State, error) {
	rec, err := a.collector.Collect(ctx, s.link)
	if err != nil {
		a.logger.Warn("collect failed for %s: %s", s.link.URL, err.Error())
		return workflow.EndSkipped, nil
	}
	if rec.ReportID == "" {
		a.logger.Warn("no report id derivable for %s", s.link.URL)
		return workflow.EndSkipped, nil
	}
	if rec.Incident.CauseCode == "" {
		rec.Incident.CauseCode = analysis.ClassifyCause(rec.Incident.BriefCause)
	}
	s.rec = rec
	return stateRequestScan, nil
}

func (a *IncidentAnalysis) stepRequestScan(ctx context.Context, s *reportRun) (workflow.State, error) {
	s.corrID = uuid.NewString()
	s.wait = a.pending.register(s.corrID)

	err := a.PublishCorrelated(ctx, core.TopicScanRequest, s.corrID, core.ScanRequest{
		CorrelationID: s.corrID,
		MineName:      s.rec.Mine.Name,
		District:      s.rec.Mine.District,
		State:         s.rec.Mine.State,
		Date:          s.rec.AccidentDate,
	})
	if err != nil {
		a.pending.cancel(s.corrID)
		return "", err
	}
	return stateWaitScan, nil
}

func (a *IncidentAnalysis) stepWaitScan(ctx context.Context, s *reportRun) (workflow.State, error) {
	timer := time.NewTimer(a.opts.ScanTimeout)
	defer timer.Stop()
	select {
	case res := <-s.wait:
		s.articles = res.Articles
		return stateUpdateDB, nil
	case <-timer.C:
		a.pending.cancel(s.corrID)
		return "", fmt.Errorf("no scan results for %s within %s", s.rec.ReportID, a.opts.ScanTimeout)
	case <-ctx.Done():
		a.pending.cancel(s.corrID)
		return "", ctx.Err()
	}
}

func (a *IncidentAnalysis) stepUpdateDB(ctx context.Context, s *reportRun) (workflow.State, error) {
	status := core.VerificationUnverified
	urls := make([]string, 0, len(s.articles))
	for _, art := range s.articles {
		urls = append(urls, art.URL)
	}
	if len(urls) > 0 {
		status = core.VerificationVerified
	}
	v := core.Verification{Status: status, Timestamp: time.Now().UTC(), Articles: urls}

	known, err := a.store.HasReportID(ctx, s.rec.ReportID)
	if err != nil {
		return "", err
	}
	if known {
		if err := a.store.UpdateVerification(ctx, s.rec.ReportID, v); err != nil {
			return "", err
		}
		return workflow.EndCommitted, nil
	}

	s.rec.Verification = v
	id, err := a.store.Insert(ctx, *s.rec)
	if err != nil {
		return "", err
	}
	a.indexRecord(ctx, id, *s.rec)
	return workflow.EndCommitted, nil
}

// indexRecord feeds the semantic index, best effort.
func (a *IncidentAnalysis) indexRecord(ctx context.Context, id string, rec core.IncidentRecord) {
	if a.opts.Index == nil {
		return
	}
	meta := map[string]any{"report_id": rec.ReportID, "state": rec.Mine.State}
	if err := a.opts.Index.Add(ctx, id, store.FormatContextBlock(rec), meta); err != nil {
		a.logger.Warn("semantic index update failed: %s", err.Error())
	}
}

// Bus handlers. Workflow runs execute on their own goroutines so a slow LLM
// call never stalls topic dispatch; ordering within one record's lifecycle
// comes from the workflow itself.

func (a *IncidentAnalysis) handleArticle(ctx context.Context, msg core.Message) error {
	art, ok := msg.Payload.(core.Article)
	if !ok {
		return fmt.Errorf("news article: unexpected payload %T", msg.Payload)
	}
	a.handlers.Add(1)
	go func() {
		defer a.handlers.Done()
		start := time.Now()
		s := newsRun{article: art}
		res, err := a.newsFlow.Run(ctx, &s)
		a.logger.LogWorkflowRun(a.newsFlow.Name(), string(res.Outcome), res.Steps, time.Since(start), err)
	}()
	return nil
}

func (a *IncidentAnalysis) handleReport(ctx context.Context, msg core.Message) error {
	link, ok := msg.Payload.(core.ReportLink)
	if !ok {
		return fmt.Errorf("report link: unexpected payload %T", msg.Payload)
	}
	a.handlers.Add(1)
	go func() {
		defer a.handlers.Done()
		start := time.Now()
		s := reportRun{link: link}
		res, err := a.reportFlow.Run(ctx, &s)
		a.logger.LogWorkflowRun(a.reportFlow.Name(), string(res.Outcome), res.Steps, time.Since(start), err)
	}()
	return nil
}

func (a *IncidentAnalysis) handleScanResults(_ context.Context, msg core.Message) error {
	res, ok := msg.Payload.(core.ScanResults)
	if !ok {
		return fmt.Errorf("scan results: unexpected payload %T", msg.Payload)
	}
	if !a.pending.fulfill(res.CorrelationID, res) {
		a.logger.Debug("dropping scan results with no waiter: %s", res.CorrelationID)
	}
	return nil
}

// Periodic jobs.

// Run evaluates the job schedules once a minute until cancelled. Job
// failures are logged and never end the loop.
func (a *IncidentAnalysis) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if a.due(a.opts.AnalysisSchedule, now) {
				a.runJob(ctx, "pattern-analysis", a.runPatternAnalysis)
			}
			if a.due(a.opts.AuditSchedule, now) {
				a.runJob(ctx, "audit-report", a.runAuditReport)
			}
		}
	}
}

func (a *IncidentAnalysis) due(schedule string, now time.Time) bool {
	due, err := a.gron.IsDue(schedule, now)
	if err != nil {
		a.logger.Error("bad schedule %q: %s", schedule, err.Error())
		return false
	}
	return due
}

func (a *IncidentAnalysis) runJob(ctx context.Context, name string, job func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("job %s panicked: %v", name, r)
		}
	}()
	if err := job(ctx); err != nil {
		a.logger.Error("job %s failed: %s", name, err.Error())
	}
}

func (a *IncidentAnalysis) runPatternAnalysis(ctx context.Context) error {
	recs, err := a.store.All(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		a.logger.Debug("pattern analysis skipped, no records")
		return nil
	}

	narrative := analysis.RenderNarrative(analysis.Analyze(recs))
	alerts, err := analysis.GenerateAlerts(ctx, a.gen, narrative, a.opts.MaxAlerts)
	if err != nil {
		a.logger.Warn("alert generation failed: %s", err.Error())
		alerts = nil
	}

	if a.opts.DataDir != "" {
		a.persistNarrative(narrative, alerts)
	}

	if err := a.Publish(ctx, core.TopicAnalysisReady, core.AnalysisReady{Narrative: narrative, Alerts: len(alerts)}); err != nil {
		return err
	}
	for _, alert := range alerts {
		if err := a.Publish(ctx, core.TopicSafetyAlert, core.SafetyAlert{Alert: alert}); err != nil {
			return err
		}
	}
	return nil
}

func (a *IncidentAnalysis) persistNarrative(narrative string, alerts []string) {
	var b strings.Builder
	b.WriteString("# Pattern Analysis\n\n")
	b.WriteString(narrative)
	if len(alerts) > 0 {
		b.WriteString("\n## Alerts\n\n")
		for _, al := range alerts {
			fmt.Fprintf(&b, "- %s\n", al)
		}
	}
	name := "pattern_analysis_" + time.Now().UTC().Format("20060102") + ".md"
	if err := os.MkdirAll(a.opts.DataDir, 0o755); err != nil {
		a.logger.Warn("persist analysis failed: %s", err.Error())
		return
	}
	if err := os.WriteFile(filepath.Join(a.opts.DataDir, name), []byte(b.String()), 0o644); err != nil {
		a.logger.Warn("persist analysis failed: %s", err.Error())
	}
}

func (a *IncidentAnalysis) runAuditReport(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -a.opts.AuditWindowDays).Format("2006-01-02")
	to := now.Format("2006-01-02")

	recs, err := a.store.Since(ctx, from, to)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		a.logger.Debug("audit report skipped, no records in window")
		return nil
	}

	sum := analysis.Analyze(recs)
	narrative := analysis.RenderNarrative(sum)
	alerts, err := analysis.GenerateAlerts(ctx, a.gen, narrative, a.opts.MaxAlerts)
	if err != nil {
		a.logger.Warn("alert generation failed: %s", err.Error())
	}
	recos, err := analysis.GenerateRecommendations(ctx, a.gen, narrative)
	if err != nil {
		a.logger.Warn("recommendation generation failed: %s", err.Error())
	}

	rep := analysis.AuditReport{
		GeneratedAt:     now,
		WindowFrom:      from,
		WindowTo:        to,
		Summary:         sum,
		Narrative:       narrative,
		Alerts:          alerts,
		Recommendations: recos,
	}
	if a.opts.DataDir != "" {
		if _, err := rep.Save(a.opts.DataDir); err != nil {
			return err
		}
	}
	return a.Publish(ctx, core.TopicAuditReady, core.AuditReady{Name: rep.Filename()})
}
