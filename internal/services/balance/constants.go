package balance

// Default sweep batch size per run.
const DefaultSweepBatchSize = 500

// maxTransitionAttempts bounds retries when an optimistic status check
// loses a race.
const maxTransitionAttempts = 3

// reconcileTolerance absorbs float accumulation below half a cent.
const reconcileTolerance = 0.005
