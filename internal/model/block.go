package model

// Chain cadence used by the scenario driver and the oracle defaults.
const (
	BlocksPerMinute = 10
	BlocksPerHour   = BlocksPerMinute * 60
	BlocksPerDay    = BlocksPerHour * 24
	BlocksPerWeek   = BlocksPerDay * 7
	BlocksPerMonth  = BlocksPerDay * 30
	BlocksPerYear   = BlocksPerDay * 365
)

// Block is a logical height/time tick supplied by the caller.
type Block struct {
	Number int64
	Time   int64
}

// Step is one input tuple of the driver stream.
type Step struct {
	Block    Block
	Slashing bool
	Op       Operation
	Amount   int64
}
