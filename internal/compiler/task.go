package compiler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/ir"
)

// runTask compiles one token. It never panics and never returns an error:
// every failure becomes the task's outcome.
func (c *Compiler) runTask(ctx context.Context, t ir.Token, level int) (res TaskResult) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "compiler.Task", trace.WithAttributes(
		attribute.Int64("token.id", t.ID),
		attribute.String("token.key", t.Key().String()),
		attribute.Int("level", level),
	))
	log := c.logger.With(zap.Int64("token_id", t.ID), zap.String("key", t.Key().String()))

	defer func() {
		if r := recover(); r != nil {
			err := &TaskError{Stage: StagePanic, TokenID: t.ID, Err: fmt.Errorf("panic: %v", r)}
			log.Error("task panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = c.placeholder(ctx, t, level, err, CodeTaskPanicked)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		if res.Outcome == ir.OutcomeErrored {
			span.SetStatus(codes.Error, res.Error)
		}
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		span.End()
		c.metrics.ObserveTask(string(res.Outcome), time.Since(start))
	}()

	res = TaskResult{TokenID: t.ID, Key: t.Key(), Level: level}

	code, hit, err := c.cache.Produce(ctx, t.ContentHash, func(ctx context.Context) (string, error) {
		return retry(ctx, c.retry, c.metrics, log, "generate", func(ctx context.Context) (string, error) {
			return c.collab.Generator.Generate(ctx, t.Content)
		})
	})
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		return c.placeholder(ctx, t, level, &TaskError{Stage: StageGenerate, TokenID: t.ID, Err: err}, CodeGenerationFailed)
	}

	uow := c.persist.Begin(t.ID)
	defer uow.Discard()

	art := ir.Artifact{
		TokenID:     t.ID,
		ContentHash: t.ContentHash,
		Code:        code,
		CacheHit:    hit,
		Valid:       true,
	}
	uow.PutCache(t.ContentHash, code)

	var swap *cacheSwap
	if c.validate && c.collab.Validator != nil {
		art, swap, err = c.validateAndRepair(ctx, log, art)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
		}
		if swap != nil {
			uow.SwapCache(t.ContentHash, swap.from, swap.to)
		}
	}

	if art.Valid && c.collab.Evaluator != nil {
		if w := c.evaluate(ctx, log, t, &art); w != "" {
			res.Warnings = append(res.Warnings, w)
		}
	}

	switch {
	case art.Valid && art.CacheHit:
		art.Outcome = ir.OutcomeCached
	case art.Valid:
		art.Outcome = ir.OutcomeCompiled
	default:
		art.Outcome = ir.OutcomeInvalid
	}

	uow.PutArtifact(art)
	saved, err := uow.Commit(context.WithoutCancel(ctx))
	if err != nil {
		te := &TaskError{Stage: StagePersist, TokenID: t.ID, Err: err}
		log.Error("persist failed; token left for retry", zap.Error(err))
		res.Outcome = ir.OutcomeErrored
		res.Artifact = art
		res.Err = te
		res.Error = te.Error()
		return res
	}
	if swap != nil {
		c.cache.Replace(t.ContentHash, swap.from, swap.to)
	}

	res.Outcome = saved.Outcome
	res.Artifact = saved
	log.Debug("task finished", zap.String("outcome", string(saved.Outcome)), zap.Bool("cache_hit", saved.CacheHit))
	return res
}

type cacheSwap struct {
	from, to string
}

// validateAndRepair validates art.Code and, on failure, runs the bounded
// self-repair loop. A returned swap means repaired code should replace the
// cached code for the hash. The error is set only when the validator or
// fixer could not run.
func (c *Compiler) validateAndRepair(ctx context.Context, log *zap.Logger, art ir.Artifact) (ir.Artifact, *cacheSwap, error) {
	vr, err := c.runValidator(ctx, log, art.Code)
	if err != nil {
		art.Valid = false
		art.Diagnostics = []ir.Diagnostic{errorDiagnostic(CodeValidationFailed, err)}
		return art, nil, &TaskError{Stage: StageValidate, TokenID: art.TokenID, Err: err}
	}
	if vr.Success {
		art.Valid = true
		art.Diagnostics = nil
		return art, nil, nil
	}

	art.Valid = false
	art.Diagnostics = failureDiagnostics(vr)
	if c.collab.Fixer == nil || c.repairAttempts == 0 {
		return art, nil, nil
	}

	original := art.Code
	for attempt := 1; attempt <= c.repairAttempts; attempt++ {
		fixed, err := retry(ctx, c.retry, c.metrics, log, "fix", func(ctx context.Context) (string, error) {
			return c.collab.Fixer.Fix(ctx, art.Code, SummarizeDiagnostics(art.Diagnostics))
		})
		if err != nil {
			c.metrics.ObserveRepair(false)
			log.Warn("repair failed", zap.Int("attempt", attempt), zap.Error(err))
			return art, nil, &TaskError{Stage: StageRepair, TokenID: art.TokenID, Err: err}
		}

		vr, err := c.runValidator(ctx, log, fixed)
		if err != nil {
			c.metrics.ObserveRepair(false)
			art.Code = fixed
			art.Diagnostics = []ir.Diagnostic{errorDiagnostic(CodeValidationFailed, err)}
			return art, nil, &TaskError{Stage: StageValidate, TokenID: art.TokenID, Err: err}
		}

		art.Code = fixed
		c.metrics.ObserveRepair(vr.Success)
		if vr.Success {
			log.Info("repaired invalid code", zap.Int("attempt", attempt))
			art.Valid = true
			art.Diagnostics = nil
			return art, &cacheSwap{from: original, to: fixed}, nil
		}
		art.Diagnostics = failureDiagnostics(vr)
	}
	return art, nil, nil
}

func (c *Compiler) runValidator(ctx context.Context, log *zap.Logger, code string) (ValidationResult, error) {
	return retry(ctx, c.retry, c.metrics, log, "validate", func(ctx context.Context) (ValidationResult, error) {
		return c.collab.Validator.Validate(ctx, code)
	})
}

func failureDiagnostics(vr ValidationResult) []ir.Diagnostic {
	if len(vr.Errors) > 0 {
		return vr.Errors
	}
	return []ir.Diagnostic{{Severity: "error", Code: CodeInvalidNoDetail, Message: "validation failed without diagnostics"}}
}

// evaluate records a score on a valid artifact. Evaluation failures leave
// the artifact unscored and are returned as a warning.
func (c *Compiler) evaluate(ctx context.Context, log *zap.Logger, t ir.Token, art *ir.Artifact) string {
	evalCtx := map[string]string{
		"kind":    string(t.Kind),
		"name":    t.Name,
		"content": t.Content,
	}
	ev, err := retry(ctx, c.retry, c.metrics, log, "evaluate", func(ctx context.Context) (Evaluation, error) {
		return c.collab.Evaluator.Evaluate(ctx, art.Code, evalCtx)
	})
	if err == nil && (ev.Score < MinScore || ev.Score > MaxScore) {
		err = fmt.Errorf("%w: %g", ErrScoreOutOfRange, ev.Score)
	}
	if err != nil {
		te := &TaskError{Stage: StageEvaluate, TokenID: t.ID, Err: err}
		log.Warn("evaluation failed", zap.Error(err))
		return te.Error()
	}

	score := ev.Score
	art.Score = &score
	art.Feedback = ev.Feedback
	return ""
}

// placeholder persists an invalid artifact recording err and returns an
// errored result. It runs for generation failures and panics.
func (c *Compiler) placeholder(ctx context.Context, t ir.Token, level int, err *TaskError, code string) TaskResult {
	art := ir.Artifact{
		TokenID:     t.ID,
		ContentHash: t.ContentHash,
		Valid:       false,
		Outcome:     ir.OutcomeErrored,
		Diagnostics: []ir.Diagnostic{errorDiagnostic(code, err.Err)},
	}
	res := TaskResult{
		TokenID:  t.ID,
		Key:      t.Key(),
		Level:    level,
		Outcome:  ir.OutcomeErrored,
		Artifact: art,
		Err:      err,
		Error:    err.Error(),
	}

	saved, cerr := c.commitPlaceholder(ctx, t.ID, art)
	if cerr != nil {
		c.logger.Error("persist placeholder failed",
			zap.Int64("token_id", t.ID), zap.Error(cerr))
		return res
	}
	res.Artifact = saved
	return res
}

func (c *Compiler) commitPlaceholder(ctx context.Context, tokenID int64, art ir.Artifact) (saved ir.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic persisting placeholder: %v", r)
		}
	}()
	uow := c.persist.Begin(tokenID)
	defer uow.Discard()
	uow.PutArtifact(art)
	return uow.Commit(context.WithoutCancel(ctx))
}
