package reversynclib

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/reversynclib/types"
)

const (
	// skip messages are informational: the record was not attempted, so it is
	// reported as a failure the orchestrator may retry or reconcile upstream
	skippedExistsMessage  = "skipped: record already exists at destination"
	skippedMissingMessage = "skipped: record does not exist at destination"
)

// CoordinatorOptions tune batch execution.
type CoordinatorOptions struct {
	// BatchTimeout bounds the processing time of one sync_batch call. It must
	// stay below the orchestrator's RPC timeout: a response carrying failures
	// in time is recoverable, a late response is not.
	BatchTimeout time.Duration
	// RecordWorkers bounds concurrent per-record destination calls within one
	// batch, so one record's slow I/O does not serialize its siblings.
	RecordWorkers int
}

func (o *CoordinatorOptions) withDefaults() CoordinatorOptions {
	result := CoordinatorOptions{BatchTimeout: 25 * time.Second, RecordWorkers: 16}
	if o != nil {
		if o.BatchTimeout > 0 {
			result.BatchTimeout = o.BatchTimeout
		}
		if o.RecordWorkers > 0 {
			result.RecordWorkers = o.RecordWorkers
		}
	}
	return result
}

// Coordinator drives delivery of one sync's records within the governor's
// limits. It holds no state between calls: outcomes depend only on the call
// payload and destination state, so identical or overlapping batches may be
// replayed safely.
type Coordinator struct {
	appbase.Service
	destination Destination
	governor    *Governor
	limiters    *ExecutionLimiters
	options     CoordinatorOptions
}

func NewCoordinator(destination Destination, governor *Governor, options *CoordinatorOptions) *Coordinator {
	return &Coordinator{
		Service:     appbase.NewServiceBase("coordinator"),
		destination: destination,
		governor:    governor,
		limiters:    NewExecutionLimiters(),
		options:     options.withDefaults(),
	}
}

// SyncBatch delivers one batch of records per the plan's operation semantics
// and returns exactly one result per record. One record's failure never aborts
// its siblings, and success is only ever reported after the destination
// confirmed persistence: a false failure costs a retry, a false success loses
// the record permanently.
func (c *Coordinator) SyncBatch(ctx context.Context, plan *types.SyncPlan, records []types.Record) ([]types.RecordResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, ErrConfiguration.Wrap(err, "invalid sync plan")
	}
	limits, err := c.governor.ComputeSpeed(plan)
	if err != nil {
		return nil, err
	}
	if len(records) > limits.MaximumBatchSize {
		// oversized batches are rejected, never silently truncated
		return nil, ErrConfiguration.New("batch of %d records exceeds maximum_batch_size %d", len(records), limits.MaximumBatchSize)
	}
	identifiers, err := c.batchIdentifiers(plan, records)
	if err != nil {
		return nil, err
	}
	limiter, err := c.limiters.ForPlan(plan, limits)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.options.BatchTimeout)
	defer cancel()
	if err = limiter.AcquireSlot(ctx); err != nil {
		return nil, ErrDestination.Wrap(err, "too many parallel batches in flight")
	}
	defer limiter.ReleaseSlot()

	attempted := make([]*types.RecordResult, len(records))
	workers := make(chan struct{}, c.options.RecordWorkers)
	var wg sync.WaitGroup
	for i := range records {
		select {
		case workers <- struct{}{}:
		case <-ctx.Done():
			// out of budget: remaining records stay unattempted and reconcile
			// to failures the orchestrator can retry
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer func() {
				<-workers
				wg.Done()
			}()
			attempted[i] = c.processRecord(ctx, limiter, plan, records[i], identifiers[i])
		}(i)
	}
	wg.Wait()
	flattened := make([]types.RecordResult, 0, len(records))
	for _, result := range attempted {
		if result != nil {
			flattened = append(flattened, *result)
		}
	}
	return Reconcile(plan, records, flattened)
}

// batchIdentifiers extracts identifier values up front. A record without an
// identifier value cannot be reported exactly once by identifier, so it fails
// the whole call as a configuration error. Duplicates are rejected for the
// same reason.
func (c *Coordinator) batchIdentifiers(plan *types.SyncPlan, records []types.Record) ([]any, error) {
	identifiers := make([]any, len(records))
	seen := make(map[string]bool, len(records))
	for i, record := range records {
		identifier, err := record.IdentifierValue(plan)
		if err != nil {
			return nil, ErrConfiguration.Wrap(err, "record %d", i)
		}
		key := types.IdentifierKey(identifier)
		if seen[key] {
			return nil, ErrConfiguration.New("duplicate identifier value in batch: %s", key)
		}
		seen[key] = true
		identifiers[i] = identifier
	}
	return identifiers, nil
}

// processRecord sequences the check-then-act logic of the plan's operation for
// one record. Every outcome, including a panic in the destination
// implementation, resolves to a definite result; ambiguous outcomes resolve to
// failure.
func (c *Coordinator) processRecord(ctx context.Context, limiter *PlanLimiter, plan *types.SyncPlan, record types.Record, identifier any) (result *types.RecordResult) {
	defer func() {
		if r := recover(); r != nil {
			c.SystemErrorf("panic processing record %v: %v", identifier, r)
			result = failure(identifier, fmt.Sprintf("internal error: %v", r))
		}
	}()
	if err := limiter.WaitRecord(ctx); err != nil {
		return failure(identifier, "batch timed out before record was attempted")
	}
	switch plan.Operation {
	case types.OperationInsert:
		exists, err := c.destination.Exists(ctx, plan, identifier)
		if err != nil {
			return failure(identifier, err.Error())
		}
		if exists {
			return failure(identifier, skippedExistsMessage)
		}
	case types.OperationUpdate:
		exists, err := c.destination.Exists(ctx, plan, identifier)
		if err != nil {
			return failure(identifier, err.Error())
		}
		if !exists {
			return failure(identifier, skippedMissingMessage)
		}
	case types.OperationUpsert:
		// attempts every record unconditionally
	}
	if err := c.destination.Persist(ctx, plan, record); err != nil {
		return failure(identifier, err.Error())
	}
	return &types.RecordResult{Identifier: identifier, Success: true}
}

func failure(identifier any, message string) *types.RecordResult {
	return &types.RecordResult{Identifier: identifier, Success: false, ErrorMessage: message}
}
