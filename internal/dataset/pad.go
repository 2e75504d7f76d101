package dataset

// Side selects where padding or truncation happens.
type Side int

const (
	// Pre pads or truncates at the start of a sequence.
	Pre Side = iota
	// Post pads or truncates at the end of a sequence.
	Post
)

// PadOptions controls PadSequences. The zero value pads and truncates at the start with 0.
type PadOptions struct {
	Padding    Side
	Truncating Side
	Value      int
}

// PadSequences returns copies of seqs with length exactly maxLen.
func PadSequences(seqs [][]int, maxLen int, opts PadOptions) [][]int {
	out := make([][]int, len(seqs))
	for i, seq := range seqs {
		out[i] = PadSequence(seq, maxLen, opts)
	}
	return out
}

// PadSequence pads or truncates a single sequence to maxLen.
func PadSequence(seq []int, maxLen int, opts PadOptions) []int {
	if maxLen <= 0 {
		return []int{}
	}
	if len(seq) > maxLen {
		if opts.Truncating == Pre {
			seq = seq[len(seq)-maxLen:]
		} else {
			seq = seq[:maxLen]
		}
	}
	row := make([]int, maxLen)
	if opts.Value != 0 {
		for j := range row {
			row[j] = opts.Value
		}
	}
	if opts.Padding == Pre {
		copy(row[maxLen-len(seq):], seq)
	} else {
		copy(row, seq)
	}
	return row
}
