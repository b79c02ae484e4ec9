// Package ingest drives the line-by-line ingestion of tagged JSON messages.
//
// The loop is single-threaded: lines are parsed, routed and buffered in
// arrival order, and a flush blocks ingestion until it completes. Only the
// uploads inside a flush run concurrently.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jittakal/targets3/internal/checkpoint"
	"github.com/jittakal/targets3/internal/envelope"
	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/internal/flush"
	"github.com/jittakal/targets3/internal/partition"
	"github.com/jittakal/targets3/pkg/buffer"
	"github.com/jittakal/targets3/pkg/message"
)

// Line outcomes reported to metrics.
const (
	LineRecord  = "record"
	LineState   = "state"
	LineIgnored = "ignored"
	LineBlank   = "blank"
	LineSkipped = "skipped"
)

// MetricsCollector defines metrics operations for the ingestion loop.
type MetricsCollector interface {
	IncLinesRead(status string)
	SetBufferStats(bytes int64, records int)
}

// DeadLetterPublisher receives lines the loop had to skip.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, line, reason string) error
}

// Flusher writes drained batches to object storage.
type Flusher interface {
	Flush(ctx context.Context, batches []message.Batch) *flush.Result
}

// Config contains ingestion loop configuration.
type Config struct {
	// EmitState writes the latest checkpoint to StateOutput after every
	// successful flush and at the end of the run.
	EmitState   bool
	StateOutput io.Writer

	// WarnBurst and WarnInterval bound how often skipped lines are logged.
	WarnBurst    int
	WarnInterval time.Duration
}

// Dependencies are the components the loop routes lines through.
type Dependencies struct {
	Parser   *envelope.Parser
	Resolver *partition.Resolver
	Buffers  buffer.Manager
	Tracker  *checkpoint.Tracker
	Policy   *flush.Policy
	Flusher  Flusher

	// DeadLetters is optional.
	DeadLetters DeadLetterPublisher
}

// Summary reports what a run did.
type Summary struct {
	Lines           int
	Records         int
	States          int
	Skipped         int
	Flushes         int
	ObjectsUploaded int
	UploadFailures  int
}

// Loop reads input lines and feeds them through parse, resolve and buffer,
// flushing whenever the policy says so and once more at end of input.
type Loop struct {
	config  Config
	deps    Dependencies
	logger  *slog.Logger
	metrics MetricsCollector

	state      atomic.Int32
	warnings   *rate.Limiter
	suppressed int
	summary    Summary

	// stateDirty is set when a checkpoint arrived since the last emission.
	stateDirty bool
	// uploadFailed stops state emission once any upload of the run failed.
	uploadFailed bool
}

// NewLoop creates a new ingestion loop.
func NewLoop(config Config, deps Dependencies, logger *slog.Logger, metrics MetricsCollector) *Loop {
	if config.WarnBurst <= 0 {
		config.WarnBurst = 10
	}
	if config.WarnInterval <= 0 {
		config.WarnInterval = time.Second
	}

	l := &Loop{
		config:   config,
		deps:     deps,
		logger:   logger,
		metrics:  metrics,
		warnings: rate.NewLimiter(rate.Every(config.WarnInterval), config.WarnBurst),
	}
	l.state.Store(int32(StateReady))
	return l
}

// State returns the current lifecycle state. Safe for concurrent use.
func (l *Loop) State() State {
	return State(l.state.Load())
}

type lineResult struct {
	line string
	err  error
}

// readLines delivers the lines of r until EOF, a read error or ctx is done.
// A final line without a trailing newline is still delivered.
func readLines(ctx context.Context, r io.Reader) <-chan lineResult {
	out := make(chan lineResult)
	go func() {
		defer close(out)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case out <- lineResult{line: line}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case out <- lineResult{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()
	return out
}

// Run consumes r until end of input or cancellation of ctx, then flushes
// whatever is still buffered.
//
// A checkpoint that cannot be persisted ends the run immediately with a
// *errors.CheckpointPersistError. Upload failures never stop the loop; they
// are counted in the returned summary.
func (l *Loop) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	defer l.state.Store(int32(StateDone))

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, r)

	var runErr error
read:
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("input cancelled, flushing buffered lines", "reason", ctx.Err())
			break read
		case res, ok := <-lines:
			if !ok {
				l.logger.Info("end of input reached", "lines", l.summary.Lines)
				break read
			}
			if res.err != nil {
				runErr = fmt.Errorf("failed to read input: %w", res.err)
				l.logger.Error("input read failed", "error", res.err)
				break read
			}

			if err := l.handleLine(ctx, res.line); err != nil {
				l.logger.Error("checkpoint could not be persisted, stopping", "error", err)
				return l.result(), err
			}
		}
	}

	l.flush(ctx, "final")

	if l.suppressed > 0 {
		l.logger.Warn("skipped line warnings were suppressed", "suppressed", l.suppressed)
	}

	l.logger.Info("ingestion finished",
		"lines", l.summary.Lines,
		"records", l.summary.Records,
		"states", l.summary.States,
		"skipped", l.summary.Skipped,
		"flushes", l.summary.Flushes,
		"objects_uploaded", l.summary.ObjectsUploaded,
		"upload_failures", l.summary.UploadFailures,
	)

	return l.result(), runErr
}

func (l *Loop) result() *Summary {
	summary := l.summary
	return &summary
}

// handleLine processes one raw line. Only checkpoint persistence failures
// are returned; every other problem is handled in place.
func (l *Loop) handleLine(ctx context.Context, line string) error {
	l.summary.Lines++

	if strings.TrimSpace(line) == "" {
		l.recordLine(LineBlank)
		return nil
	}

	env, err := l.deps.Parser.Parse(line)
	if err != nil {
		l.skip(ctx, line, err)
		return nil
	}

	switch env.Kind {
	case message.KindRecord:
		p := l.deps.Resolver.Resolve(env, l.deps.Tracker.Current())
		l.deps.Buffers.Append(p, env.Raw)
		l.summary.Records++
		l.recordLine(LineRecord)
		l.state.CompareAndSwap(int32(StateReady), int32(StateAccumulating))

	case message.KindState:
		l.summary.States++
		l.recordLine(LineState)
		err := l.deps.Tracker.Observe(env)
		l.stateDirty = true
		if err != nil {
			return err
		}

	default:
		l.recordLine(LineIgnored)
		l.logger.Debug("ignoring message", "type", env.Kind, "stream", env.Stream)
	}

	if l.deps.Policy.ShouldFlush(l.deps.Buffers.Stats()) {
		l.flush(ctx, "threshold")
	}
	return nil
}

// skip counts and reports a line that could not be parsed.
func (l *Loop) skip(ctx context.Context, line string, err error) {
	l.summary.Skipped++
	l.recordLine(LineSkipped)

	if l.warnings.Allow() {
		l.logger.Warn("skipping unparseable line", "error", err, "line_bytes", len(line))
	} else {
		l.suppressed++
	}

	if l.deps.DeadLetters == nil {
		return
	}
	reason := errors.FailureReason(err)
	if dlqErr := l.deps.DeadLetters.Publish(ctx, strings.TrimRight(line, "\r\n"), reason); dlqErr != nil {
		l.logger.Error("failed to publish skipped line to dead letter topic", "error", dlqErr)
	}
}

// flush drains every partition and hands the batches to the flusher.
func (l *Loop) flush(ctx context.Context, trigger string) {
	if l.deps.Buffers.Stats().RecordCount == 0 {
		l.emitState()
		return
	}

	l.state.Store(int32(StateFlushing))
	batches := l.deps.Buffers.Drain()
	l.publishBufferStats()

	l.logger.Info("flushing partitions", "trigger", trigger, "partitions", len(batches))
	result := l.deps.Flusher.Flush(ctx, batches)

	l.summary.Flushes++
	l.summary.ObjectsUploaded += len(result.Uploaded)
	l.summary.UploadFailures += len(result.Failures)

	for _, f := range result.Failures {
		l.logger.Error("partition flush failed",
			"partition", f.PartitionKey,
			"key", f.Key,
			"retryable", f.IsRetryable(),
			"error", f.Err,
		)
	}
	if len(result.Failures) > 0 {
		l.uploadFailed = true
	}

	l.state.Store(int32(StateAccumulating))
	l.emitState()
}

// emitState writes the latest checkpoint once per change, and only while
// every upload of the run has succeeded.
func (l *Loop) emitState() {
	if !l.config.EmitState || l.config.StateOutput == nil || !l.stateDirty {
		return
	}
	if l.uploadFailed {
		l.logger.Warn("not emitting state after failed uploads")
		return
	}
	if err := l.deps.Tracker.Emit(l.config.StateOutput); err != nil {
		l.logger.Error("failed to emit state", "error", err)
		return
	}
	l.stateDirty = false
}

func (l *Loop) recordLine(status string) {
	if l.metrics == nil {
		return
	}
	l.metrics.IncLinesRead(status)
	if status == LineRecord {
		l.publishBufferStats()
	}
}

func (l *Loop) publishBufferStats() {
	if l.metrics == nil {
		return
	}
	stats := l.deps.Buffers.Stats()
	l.metrics.SetBufferStats(stats.SizeBytes, stats.RecordCount)
}
