package utils

import (
	"time"
)

// Work unit retry constants
const (
	// DefaultMaxAttempts bounds the executions of one work unit
	DefaultMaxAttempts = 3

	// WorkUnitLockTTL caps how long an identity stays locked if a worker dies mid-unit
	WorkUnitLockTTL = 30 * time.Minute
)

// Distribution constants
const (
	// DefaultAnnualDistributionPercentage is the share of annual fund profit paid to investors
	DefaultAnnualDistributionPercentage = "0.60"

	// MinQuarterlyBonusPercentage and MaxQuarterlyBonusPercentage bound the quarterly bonus pool
	MinQuarterlyBonusPercentage = 5
	MaxQuarterlyBonusPercentage = 10

	// SystemActor is recorded as creator for scheduled runs
	SystemActor = "system"
)

// Settlement constants
const (
	DefaultSettlementBatchSize  = 500
	MaxSettlementBatchSize      = 10000
	DefaultSettlementMaxAgeDays = 7
)
