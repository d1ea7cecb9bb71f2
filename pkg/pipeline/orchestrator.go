package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/docsource"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/logging"
	"mercator-hq/docguard/pkg/telemetry/metrics"
	"mercator-hq/docguard/pkg/telemetry/tracing"
)

// DefaultLeaseTTL is how long a worker owns a run without renewing.
const DefaultLeaseTTL = 5 * time.Minute

// Config configures an Orchestrator.
type Config struct {
	// WorkerID identifies this process in run leases.
	WorkerID string

	// LeaseTTL bounds how long a crashed worker blocks a run.
	LeaseTTL time.Duration
}

// Deps are the collaborators of an Orchestrator. Stages, Metrics and Tracer
// are optional.
type Deps struct {
	Store     store.Store
	Ledger    *audit.Ledger
	Documents docsource.Provider
	Policies  policy.Provider
	Stages    Stages
	Metrics   *metrics.Collector
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

// StartRequest describes a new run.
type StartRequest struct {
	DocumentID      string
	PolicySetID     string
	ExternalSharing bool
	Actor           string
}

// Orchestrator advances runs through the stage pipeline.
type Orchestrator struct {
	store     store.Store
	ledger    *audit.Ledger
	documents docsource.Provider
	policies  policy.Provider
	stages    Stages
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Ledger == nil:
		return nil, errors.New("pipeline: audit ledger is required")
	case deps.Documents == nil:
		return nil, errors.New("pipeline: document provider is required")
	case deps.Policies == nil:
		return nil, errors.New("pipeline: policy provider is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Stages == nil {
		deps.Stages = DefaultStages(nil, deps.Logger)
	}
	if err := deps.Stages.validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()[:8]
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}

	return &Orchestrator{
		store:     deps.Store,
		ledger:    deps.Ledger,
		documents: deps.Documents,
		policies:  deps.Policies,
		stages:    deps.Stages,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		logger:    deps.Logger.With("component", "pipeline.orchestrator", "worker_id", cfg.WorkerID),
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartRun creates a run for the document and advances it until it
// completes, fails or waits for a human. The returned run is non-nil
// whenever the run was created, even if err is set.
func (o *Orchestrator) StartRun(ctx context.Context, req StartRequest) (*model.Run, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, model.NewValidationError("document_id", "document id is required")
	}
	if req.PolicySetID == "" {
		req.PolicySetID = policy.DefaultSetID
	}
	set, err := o.policies.Get(ctx, req.PolicySetID)
	if err != nil {
		return nil, model.NewValidationError("policy_set_id", fmt.Sprintf("unknown policy set %q: %v", req.PolicySetID, err))
	}

	run := model.NewRun(uuid.NewString(), req.DocumentID, req.PolicySetID, o.now())
	run.ExternalSharing = req.ExternalSharing
	if err := pinPolicy(run, set); err != nil {
		return nil, err
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	ctx = logging.WithRunID(ctx, run.RunID)
	o.ledger.Record(ctx, run.RunID, model.AuditRunCreated, req.Actor, model.RunCreatedDetails{
		DocumentID:      run.DocumentID,
		PolicySetID:     run.PolicySetID,
		PolicyVersion:   run.PolicyVersion,
		PolicyHash:      run.PolicyHash,
		ExternalSharing: run.ExternalSharing,
	})
	o.metrics.RecordRunStarted(run.PolicySetID)
	o.logger.InfoContext(ctx, "run created",
		"document_id", run.DocumentID,
		"policy_set_id", run.PolicySetID,
		"policy_version", run.PolicyVersion,
		"external_sharing", run.ExternalSharing,
	)

	return o.Advance(ctx, run.RunID, req.Actor)
}

// Advance takes the run lease and executes stages until the run completes,
// fails or suspends for HITL. Terminal and suspended runs are returned
// unchanged. A live lease is a ConflictError, even when this orchestrator
// holds it.
func (o *Orchestrator) Advance(ctx context.Context, runID, actor string) (*model.Run, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() || run.Status == model.StatusAwaitingHITL {
		return run, nil
	}
	if err := o.acquire(ctx, run); err != nil {
		return nil, err
	}
	return o.drive(logging.WithRunID(ctx, runID), run, actor)
}

// Resume continues a run whose pending HITL batch has been fully decided.
// A rejected document-level item fails the run. Runs that are not waiting
// are handed to Advance.
func (o *Orchestrator) Resume(ctx context.Context, runID, actor string) (*model.Run, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.StatusAwaitingHITL {
		return o.Advance(ctx, runID, actor)
	}
	ctx = logging.WithRunID(ctx, runID)

	batch, err := o.store.GetBatch(ctx, run.PendingHITLID)
	if err != nil {
		return nil, fmt.Errorf("load pending batch: %w", err)
	}
	if batch.AnyPending() {
		return run, model.NewConflictError("hitl_batch", batch.HITLID, "batch still has pending items")
	}
	if err := o.acquire(ctx, run); err != nil {
		return nil, err
	}

	run.Resolutions = append(run.Resolutions, batch)
	run.PendingHITLID = ""

	if item, ok := rejectedDocumentItem(batch); ok {
		reason := "document_rejected"
		if item.ItemType == model.ItemFinalSignoff {
			reason = "final_signoff_rejected"
		}
		o.logger.InfoContext(ctx, "run rejected by reviewer",
			"hitl_id", batch.HITLID,
			"item_id", item.ItemID,
			"reason", reason,
		)
		return o.fail(ctx, run, model.FailureRejected, batch.Stage,
			fmt.Errorf("%s by %s (%s): %s", reason, item.DecidedBy, item.Ref(), item.Rationale), actor)
	}

	next, ok := run.NextStage()
	if !ok {
		next = batch.Stage
	}
	if err := o.transition(ctx, run, model.StatusRunning, next, actor); err != nil {
		return nil, err
	}
	return o.drive(ctx, run, actor)
}

// acquire takes the run lease with a compare-and-swap update. Each
// acquisition gets a fresh token, so any live lease blocks it.
func (o *Orchestrator) acquire(ctx context.Context, run *model.Run) error {
	now := o.now()
	if run.LeaseHeld("", now) {
		until := "no expiry"
		if run.LeaseExpiresAt != nil {
			until = run.LeaseExpiresAt.Format(time.RFC3339)
		}
		return model.NewConflictError("run", run.RunID, fmt.Sprintf("leased by %s until %s", run.LeaseHolder, until))
	}
	if run.LeaseHolder != "" {
		o.logger.WarnContext(ctx, "taking over expired lease",
			"run_id", run.RunID,
			"previous_holder", run.LeaseHolder,
		)
	}
	expires := now.Add(o.config.LeaseTTL)
	run.LeaseHolder = o.config.WorkerID
	run.LeaseToken = uuid.NewString()
	run.LeaseExpiresAt = &expires
	run.UpdatedAt = now
	return o.store.UpdateRun(ctx, run)
}

// release drops the lease after an interrupted drive. It is best effort.
func (o *Orchestrator) release(ctx context.Context, run *model.Run) {
	run.LeaseHolder = ""
	run.LeaseToken = ""
	run.LeaseExpiresAt = nil
	run.UpdatedAt = o.now()
	if err := o.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.WarnContext(ctx, "failed to release run lease", "error", err)
	}
}

// save persists the run. The lease is renewed while the run is active and
// dropped once it suspends or ends.
func (o *Orchestrator) save(ctx context.Context, run *model.Run) error {
	now := o.now()
	run.UpdatedAt = now
	if run.Status == model.StatusPending || run.Status == model.StatusRunning {
		expires := now.Add(o.config.LeaseTTL)
		run.LeaseHolder = o.config.WorkerID
		run.LeaseExpiresAt = &expires
	} else {
		run.LeaseHolder = ""
		run.LeaseToken = ""
		run.LeaseExpiresAt = nil
	}
	return o.store.UpdateRun(ctx, run)
}

// transition moves the run to a new state, persists it and records the
// transition in the ledger.
func (o *Orchestrator) transition(ctx context.Context, run *model.Run, to model.RunStatus, stage model.StageName, actor string) error {
	from := run.Status
	run.Status = to
	run.CurrentStage = stage
	if err := o.save(ctx, run); err != nil {
		return fmt.Errorf("persist transition %s -> %s: %w", from, to, err)
	}

	details := model.TransitionDetails{From: from, To: to, Stage: stage, Failure: run.Failure}
	if to == model.StatusAwaitingHITL {
		details.HITLID = run.PendingHITLID
	}
	o.ledger.Record(ctx, run.RunID, model.AuditTransition, actor, details)
	o.metrics.RecordRunStatus(string(to), run.UpdatedAt.Sub(run.CreatedAt), to.Terminal())

	o.logger.DebugContext(ctx, "run transition",
		"from", from,
		"to", to,
		"stage", stage,
	)
	return nil
}

// drive runs stages until the run suspends, completes or fails. The caller
// holds the lease.
func (o *Orchestrator) drive(ctx context.Context, run *model.Run, actor string) (result *model.Run, err error) {
	ctx, span := tracing.StartRun(ctx, o.tracer, run)
	defer func() { tracing.EndRun(span, result, err) }()

	if run.Status == model.StatusPending {
		if err := o.transition(ctx, run, model.StatusRunning, model.StageClassify, actor); err != nil {
			return nil, err
		}
	}

	doc, err := o.loadDocument(ctx, run)
	if err != nil {
		var ie *model.InputError
		if errors.As(err, &ie) {
			return o.fail(ctx, run, model.FailureInput, run.CurrentStage, err, actor)
		}
		o.release(ctx, run)
		return nil, err
	}

	set, err := o.loadPolicy(ctx, run)
	if err != nil {
		stage, _ := run.NextStage()
		return o.fail(ctx, run, model.FailureStage, stage, model.NewStageError(stage, err), actor)
	}

	for {
		if last := lastOutput(run); last != nil && last.RequiresHITL() && !resolved(run, last.Stage) {
			return o.suspend(ctx, run, last, set, actor)
		}

		next, ok := run.NextStage()
		if !ok {
			return o.complete(ctx, run, actor)
		}
		if run.CurrentStage != next {
			if err := o.transition(ctx, run, model.StatusRunning, next, actor); err != nil {
				return nil, err
			}
		}

		stageCtx := logging.WithStage(ctx, string(next))
		out, elapsed, err := o.execute(stageCtx, next, &StageInput{
			Run:       run,
			Document:  doc,
			Policy:    set,
			Decisions: run.Decisions(),
		})
		o.metrics.RecordStage(string(next), elapsed, err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				o.release(ctx, run)
				return nil, ctxErr
			}
			var ie *model.InputError
			if errors.As(err, &ie) {
				return o.fail(ctx, run, model.FailureInput, next, err, actor)
			}
			return o.fail(ctx, run, model.FailureStage, next, model.NewStageError(next, err), actor)
		}

		out.Stage = next
		out.CompletedAt = o.now()
		if err := run.AddStageOutput(out); err != nil {
			return o.fail(ctx, run, model.FailureStage, next, model.NewStageError(next, err), actor)
		}
		if err := o.save(ctx, run); err != nil {
			return nil, fmt.Errorf("persist %s output: %w", next, err)
		}

		o.ledger.Record(stageCtx, run.RunID, model.AuditStageCompleted, actor, model.StageCompletedDetails{
			Stage:      next,
			DurationMS: elapsed.Milliseconds(),
			Output:     out,
		})
		if next == model.StageExtract && out.Extraction != nil {
			o.metrics.RecordDetections(countByType(out.Extraction.PIIEntities))
		}
		o.logger.InfoContext(stageCtx, "stage completed",
			"duration_ms", elapsed.Milliseconds(),
			"requires_hitl", out.RequiresHITL(),
		)
	}
}

// execute runs one stage, converting a panic into an error.
func (o *Orchestrator) execute(ctx context.Context, name model.StageName, in *StageInput) (out *model.StageOutput, elapsed time.Duration, err error) {
	ctx, span := tracing.StartStage(ctx, o.tracer, in.Run.RunID, name)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() {
		elapsed = time.Since(start)
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("stage panicked: %v", r)
			o.logger.ErrorContext(ctx, "stage panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	out, err = o.stages[name].Execute(ctx, in)
	if err == nil && out == nil {
		err = errors.New("stage returned no output")
	}
	return out, elapsed, err
}

// loadDocument fetches the run's document and checks it is usable text that
// has not changed since the run started.
func (o *Orchestrator) loadDocument(ctx context.Context, run *model.Run) (*model.Document, error) {
	doc, err := o.documents.Load(ctx, run.DocumentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewInputError(run.DocumentID, "document not found", err)
		}
		return nil, err
	}
	if err := validateContent(doc); err != nil {
		return nil, err
	}

	hash := audit.HashContent([]byte(doc.RawContent))
	switch {
	case run.DocumentHash == "":
		run.DocumentHash = hash
	case run.DocumentHash != hash:
		return nil, model.NewInputError(run.DocumentID, "document content changed since the run started", nil)
	}
	return doc, nil
}

// loadPolicy returns the policy set pinned on the run. Runs created before
// pinning are pinned to the provider's current set.
func (o *Orchestrator) loadPolicy(ctx context.Context, run *model.Run) (*policy.PolicySet, error) {
	if len(run.PolicySnapshot) == 0 {
		set, err := o.policies.Get(ctx, run.PolicySetID)
		if err != nil {
			return nil, fmt.Errorf("load policy set %s: %w", run.PolicySetID, err)
		}
		if err := pinPolicy(run, set); err != nil {
			return nil, err
		}
		return set, nil
	}

	if hash := audit.HashContent(run.PolicySnapshot); hash != run.PolicyHash {
		return nil, fmt.Errorf("policy set %s snapshot hash %s does not match pinned %s", run.PolicySetID, hash, run.PolicyHash)
	}
	var set policy.PolicySet
	if err := json.Unmarshal(run.PolicySnapshot, &set); err != nil {
		return nil, fmt.Errorf("decode policy set %s snapshot: %w", run.PolicySetID, err)
	}
	return &set, nil
}

// pinPolicy records the set on the run; resumed stages use this copy even
// after the provider reloads.
func pinPolicy(run *model.Run, set *policy.PolicySet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("snapshot policy set %s: %w", set.ID, err)
	}
	run.PolicySnapshot = data
	run.PolicyVersion = set.Version
	run.PolicyHash = audit.HashContent(data)
	return nil
}

func validateContent(doc *model.Document) error {
	if !utf8.ValidString(doc.RawContent) {
		return model.NewInputError(doc.ID, "content is not valid UTF-8", nil)
	}
	if strings.IndexByte(doc.RawContent, 0) >= 0 {
		return model.NewInputError(doc.ID, "content contains NUL bytes", nil)
	}
	return nil
}

// suspend creates (or finds) the HITL batch for out and parks the run.
func (o *Orchestrator) suspend(ctx context.Context, run *model.Run, out *model.StageOutput, set *policy.PolicySet, actor string) (*model.Run, error) {
	batch := newBatch(run, out, set, o.now())
	err := o.store.CreateBatch(ctx, batch)
	switch {
	case err == nil:
		o.ledger.Record(ctx, run.RunID, model.AuditHITLEnqueued, actor, model.HITLEnqueuedDetails{
			HITLID: batch.HITLID,
			Stage:  batch.Stage,
			Items:  batch.Items,
		})
		o.metrics.RecordHITLEnqueued(string(batch.Stage), len(batch.Items))
	case model.IsConflict(err):
		// A previous attempt created the batch but crashed before parking
		// the run.
		existing, gerr := o.store.GetBatch(ctx, batch.HITLID)
		if gerr != nil {
			return nil, fmt.Errorf("load existing batch: %w", gerr)
		}
		batch = existing
	default:
		return nil, fmt.Errorf("create hitl batch: %w", err)
	}

	run.PendingHITLID = batch.HITLID
	if err := o.transition(ctx, run, model.StatusAwaitingHITL, out.Stage, actor); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "run awaiting human review",
		"hitl_id", batch.HITLID,
		"stage", batch.Stage,
		"items", len(batch.Items),
	)
	return run, nil
}

func (o *Orchestrator) complete(ctx context.Context, run *model.Run, actor string) (*model.Run, error) {
	draft := run.Output(model.StageDraft).Draft
	run.FinalOutput = &model.FinalOutput{
		Document:        draft.FinalDocument,
		RedactionsCount: draft.RedactionsCount,
		OverallRisk:     draftRisk(run),
	}
	if err := o.transition(ctx, run, model.StatusCompleted, model.StageDraft, actor); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "run completed",
		"redactions", draft.RedactionsCount,
		"overall_risk", run.FinalOutput.OverallRisk,
	)
	return run, nil
}

// fail ends the run. Human rejections are a normal outcome and return a nil
// error; input and stage failures return cause.
func (o *Orchestrator) fail(ctx context.Context, run *model.Run, kind string, stage model.StageName, cause error, actor string) (*model.Run, error) {
	run.Failure = &model.Failure{
		Kind:    kind,
		Stage:   stage,
		Message: cause.Error(),
		At:      o.now(),
	}
	if err := o.transition(ctx, run, model.StatusFailed, stage, actor); err != nil {
		return nil, errors.Join(cause, err)
	}
	if kind == model.FailureRejected {
		return run, nil
	}
	o.logger.ErrorContext(ctx, "run failed",
		"kind", kind,
		"stage", stage,
		"error", cause,
	)
	return run, cause
}

// lastOutput returns the output of the latest completed stage.
func lastOutput(run *model.Run) *model.StageOutput {
	var last *model.StageOutput
	for _, st := range model.StageOrder {
		if out := run.Output(st); out != nil {
			last = out
		}
	}
	return last
}

// resolved reports whether the HITL interrupt raised by stage was decided.
func resolved(run *model.Run, stage model.StageName) bool {
	for _, b := range run.Resolutions {
		if b.Stage == stage {
			return true
		}
	}
	return false
}

func rejectedDocumentItem(batch *model.HITLBatch) (model.HITLItem, bool) {
	for _, it := range batch.Items {
		if it.Status == model.HITLRejected && it.Payload.ClauseID == "" {
			return it, true
		}
	}
	return model.HITLItem{}, false
}

func countByType(entities []model.PIIEntity) map[string]int {
	counts := make(map[string]int)
	for _, ent := range entities {
		counts[ent.Type]++
	}
	return counts
}
