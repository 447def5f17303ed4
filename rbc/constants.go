package rbc

// Message flags. A target receives a message when its mask contains every
// bit of the message flag.
const (
	FlagPosition    = 1
	FlagRawEstimate = 2
	FlagStatus      = 4

	FlagAll = FlagPosition | FlagRawEstimate | FlagStatus
)
