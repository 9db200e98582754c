package reversynclib

import (
	"github.com/reversync/reversync/reversynclib/types"
)

// Reconcile builds the final record-result list of a batch. Every input record
// appears exactly once in the output, keyed by its identifier value. Records
// the coordinator never reached a conclusion for - a thrown error, a panic, a
// deadline - are defaulted to failure with no fabricated error message:
// absence itself signals that processing did not finish, and the orchestrator
// treats failed records as safe to retry.
func Reconcile(plan *types.SyncPlan, records []types.Record, attempted []types.RecordResult) ([]types.RecordResult, error) {
	byKey := make(map[string]types.RecordResult, len(attempted))
	for _, result := range attempted {
		byKey[types.IdentifierKey(result.Identifier)] = result
	}
	results := make([]types.RecordResult, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		identifier, err := record.IdentifierValue(plan)
		if err != nil {
			return nil, ErrConfiguration.Wrap(err, "cannot reconcile record")
		}
		key := types.IdentifierKey(identifier)
		if seen[key] {
			return nil, ErrConfiguration.New("duplicate identifier value in batch: %s", key)
		}
		seen[key] = true
		if result, ok := byKey[key]; ok {
			// identifier is reported as the record carried it, not as the
			// coordinator normalized it
			result.Identifier = identifier
			results = append(results, result)
		} else {
			results = append(results, types.RecordResult{Identifier: identifier, Success: false})
		}
	}
	return results, nil
}
