package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/logger"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Run analyses one user and returns the final state.
func (p *Pipeline) Run(ctx context.Context, userID string, limit int) (*PipelineState, error) {
	state := &PipelineState{UserID: userID, Limit: limit}
	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// Deps are the collaborators of the analysis pipeline. Source, Analyzer and
// Store are required; a nil optional dependency drops its step.
type Deps struct {
	Source   TransactionSource
	Analyzer ReportAnalyzer
	Store    ReportSaver

	Exporter  ReportExporter
	Notifier  AnomalyNotifier
	Publisher InsightsPublisher

	// MinAlertSeverity defaults to high.
	MinAlertSeverity domain.Severity
}

// NewAnalysisPipeline creates the standard pipeline:
// fetch, analyze, persist, then the optional export, notify and push steps.
func NewAnalysisPipeline(deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Analyzer == nil || deps.Store == nil {
		return nil, fmt.Errorf("NewAnalysisPipeline: source, analyzer and store are required")
	}

	steps := []PipelineStep{
		&FetchTransactionsStep{Source: deps.Source},
		&AnalyzeStep{Analyzer: deps.Analyzer},
		&PersistReportStep{Store: deps.Store},
	}
	if deps.Exporter != nil {
		steps = append(steps, &ExportReportStep{Exporter: deps.Exporter})
	}
	if deps.Notifier != nil {
		steps = append(steps, &NotifyAnomaliesStep{Notifier: deps.Notifier, MinSeverity: deps.MinAlertSeverity})
	}
	if deps.Publisher != nil {
		steps = append(steps, &PushInsightsStep{Publisher: deps.Publisher})
	}

	return NewPipeline(steps...), nil
}

// JobHandler adapts the pipeline to the job queue. Data errors are marked
// permanent because retrying cannot fix the input.
func JobHandler(p *Pipeline) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		analyzeJob, ok := job.(*jobs.AnalyzeUserJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unsupported job type %q", job.GetType()))
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", analyzeJob.JobID).
			Str("user_id", analyzeJob.UserID).
			Logger()
		ctx = logger.WithContext(ctx, log)

		state, err := p.Run(ctx, analyzeJob.UserID, analyzeJob.TransactionLimit)
		if err != nil {
			if domain.IsDataError(err) {
				return jobs.Permanent(err)
			}
			return err
		}

		if state.Report == nil {
			return jobs.Permanent(errNoReport)
		}

		analyzeJob.ReportID = state.Report.ReportID
		log.Info().
			Str("report_id", state.Report.ReportID).
			Int("anomalies", len(state.Report.Anomalies)).
			Strs("warnings", state.Warnings).
			Msg("Analysis pipeline finished")
		return nil
	}
}
