package jobs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
	"github.com/MimeLyc/contextual-doc-translator/internal/ratelimit"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// Runner executes jobs off the caller's goroutine. Every job passes through
// the shared limiter before reaching its provider.
type Runner struct {
	limiter *ratelimit.Limiter
}

func NewRunner(limiter *ratelimit.Limiter) *Runner {
	if limiter == nil {
		limiter = ratelimit.New(0)
	}
	return &Runner{limiter: limiter}
}

// Run starts job in a new goroutine and calls deliver exactly once with the
// outcome. It never blocks and never retries. There is no timeout: a provider
// call that never returns means deliver is never called.
func (r *Runner) Run(ctx context.Context, job Job, deliver func(Result)) {
	go func() {
		deliver(r.execute(ctx, job))
	}()
}

// Submit is Run with the result delivered on a buffered channel.
func (r *Runner) Submit(ctx context.Context, job Job) <-chan Result {
	ch := make(chan Result, 1)
	r.Run(ctx, job, func(res Result) { ch <- res })
	return ch
}

func (r *Runner) execute(ctx context.Context, job Job) Result {
	providerName := "none"
	if job.Provider != nil {
		providerName = job.Provider.Name()
	}

	ctx, span := otel.Tracer("ctxdoc/jobs").Start(ctx, "jobs.Runner.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.ref", job.Ref),
		attribute.String("provider", providerName),
		attribute.Int("source.bytes", len(job.SourceText)),
	)

	start := time.Now()
	res := Result{JobID: job.ID, Ref: job.Ref}
	res.Err = errs.SafeExecute(func() error {
		if job.Provider == nil {
			return errs.New(errs.ErrConfig, "job has no provider")
		}
		if err := r.limiter.Acquire(ctx); err != nil {
			return err
		}
		text, err := job.Provider.Translate(ctx, job.SourceText, job.Prompt, job.Glossary)
		if err != nil {
			return err
		}
		res.Text = text
		return nil
	})
	jobDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	if res.Err != nil {
		res.Text = ""
		res.Err = classify(res.Err)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		jobsTotal.WithLabelValues(providerName, "failure").Inc()
		log.Warn("Job %s (%s) failed: %v", job.ID, job.Ref, res.Err)
		return res
	}

	span.SetAttributes(attribute.Int("result.bytes", len(res.Text)))
	jobsTotal.WithLabelValues(providerName, "success").Inc()
	log.Debug("Job %s (%s) finished in %s", job.ID, job.Ref, time.Since(start).Round(time.Millisecond))
	return res
}

// classify gives every failure a type so callers can branch with errs.IsErrorType.
func classify(err error) error {
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return errs.Wrap(err, errs.ErrProvider, "translation failed").WithContext("provider", perr.Provider)
	}
	return errs.Wrap(err, errs.ErrProvider, "translation failed")
}
