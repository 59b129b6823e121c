package reactor

// Interest selects which directions a registration cares about.
type Interest int

const (
	InterestRead Interest = 1 << iota
	InterestWrite
	InterestReadWrite = InterestRead | InterestWrite
)
