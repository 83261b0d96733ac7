package pipeline

import "fmt"

// The three typed errors for spec.md §7's fatal cases, translated to exit
// codes by cmd/svgenotype's top-level handler (spec.md §6): InputError=2,
// PartitionError=3, SolverError=4; anything else is exit code 1.

// InputError is a malformed or missing input: bad BED, missing FASTA
// index, incompatible k, etc. Surfaced immediately, never retried.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("input error: %s", e.Msg)
}

func (e *InputError) Unwrap() error { return e.Err }

// PartitionError is raised when a stage's join finds a partition's output
// shard missing and --resume was not set (spec.md §5 "Cancellation").
type PartitionError struct {
	Stage     string
	Partition string
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition error: stage %s partition %s: %v", e.Stage, e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// SolverError wraps an LP solver failure (spec.md §7: "fatal; the LP is
// deterministic given inputs, so a re-run on the same inputs fails
// identically -- no retry").
type SolverError struct {
	Track string
	Err   error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver error: track %s: %v", e.Track, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// ExitCode maps a pipeline error to spec.md §6's process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch err.(type) {
	case *InputError:
		return 2
	case *PartitionError:
		return 3
	case *SolverError:
		return 4
	default:
		return 1
	}
}
