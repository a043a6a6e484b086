package protocol

import "sort"

// PseudoMedians computes the median of the cast votes under the ordering of
// the score set. Votes are mapped to their score-set indexes and the middle
// is taken; with an even number of votes whose midpoints do not coincide the
// result is the score halfway between them, which may be a score nobody voted
// for. A midpoint falling between two adjacent scores yields both. Votes that
// are "Pass" or not in the score set are ignored by the caller.
func PseudoMedians(scoreSet []string, votes []string) []string {
	indexes := make([]int, 0, len(votes))
	for _, vote := range votes {
		for i, score := range scoreSet {
			if score == vote {
				indexes = append(indexes, i)
				break
			}
		}
	}
	sort.Ints(indexes)

	var medians []int
	switch {
	case len(indexes) == 0:
	case len(indexes)%2 == 1:
		medians = []int{indexes[(len(indexes)-1)/2]}
	default:
		lower := indexes[len(indexes)/2-1]
		upper := indexes[len(indexes)/2]
		if (upper-lower)%2 == 0 {
			medians = []int{(upper + lower) / 2}
		} else {
			medians = []int{(upper + lower - 1) / 2, (upper + lower + 1) / 2}
		}
	}

	out := make([]string, len(medians))
	for i, index := range medians {
		out[i] = scoreSet[index]
	}
	return out
}

// Summary tallies the votes cast on a board for report rendering. Summaries
// are computed by whoever renders the report; they are never part of the
// broadcast session state.
type Summary struct {
	// Distribution maps each cast score to its frequency.
	Distribution map[string]int
	// Medians holds the pseudo-median score(s); see PseudoMedians.
	Medians []string
	// Consensus is true when every counted vote agrees.
	Consensus bool
}

// Summarize computes a Summary over votes (participant name to score),
// counting only scores that are in the score set and not "Pass".
func Summarize(scoreSet []string, votes map[string]string) Summary {
	settings := Settings{ScoreSet: scoreSet}
	cast := make([]string, 0, len(votes))
	distribution := make(map[string]int)
	for _, score := range votes {
		if score == "Pass" || !settings.HasScore(score) {
			continue
		}
		cast = append(cast, score)
		distribution[score]++
	}
	return Summary{
		Distribution: distribution,
		Medians:      PseudoMedians(scoreSet, cast),
		Consensus:    len(distribution) == 1,
	}
}
