/*package format handles the sequence formats used in tracer configuration
files to pick out sets of iterations, e.g:

   RHSOutputs = 0..1000 - 500
   RHSOutputs = 0 + 256 + 512..520

Sequence formats are a generic way to specify non-contiguous sequences of
natural numbers. They consist of a series of n tokens separated by "+" or "-".
Each token can be either a number or two numbers separted by "..". E.g.:

  100
  0..100
  0..10 + 100
  0..100 - 63 - 10..20

These strings build up sequences of numbers by adding/removing individual
numbers and contiguous sequences. For example, 0 through 10 would be 0..10,
1, 2, 3, 15, 16, 17 could be written as  1..17 - 4..13. Ranges are inclusive
on both ends.

All spaces around "-" and "+" symbols are ignored. An empty format expands to
an empty sequence.
*/
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

const (
	// Any expanded formats which would have more than BigNumber elements are
	// assumed to be bugs.
	BigNumber = 1<<24
)

// Sequence is a sorted set of non-negative integers.
type Sequence []int

// Contains returns true if n is in the sequence.
func (s Sequence) Contains(n int) bool {
	i := sort.SearchInts(s, n)
	return i < len(s) && s[i] == n
}

// ParseSequence expands a sequence format string into a Sequence. The
// returned error is a configuration error which names the offending key.
func ParseSequence(key, format string) (Sequence, error) {
	if strings.TrimSpace(format) == "" { return Sequence{ }, nil }

	seq, err := ExpandSequenceFormat(format)
	if err != nil {
		return nil, g_error.Config("The %s sequence format, '%s', is not "+
			"valid: %w", key, format, err)
	}
	for _, n := range seq {
		if n < 0 {
			return nil, g_error.Config("The %s sequence format, '%s', "+
				"contains the negative number %d.", key, format, n)
		}
	}
	return Sequence(seq), nil
}

// ExpandSequenceFormat expands a sequence format string into a sorted sequence
// of integers.
func ExpandSequenceFormat(format string) ([]int, error) {
	tok, err := tokeniseSequenceFormat(format)
	if err != nil { return nil, err }
	adds, subs, err := addsSubsSequenceFormat(tok)
	if err != nil { return nil, err }

	// Check the size before expanding anything.
	total := 0
	for i := range adds { total += tokenLength(adds[i]) }
	if total > BigNumber {
		return nil, fmt.Errorf("This sequence would have %d elements, "+
			"which is almost certianly a bug.", total)
	}

	m := map[int]bool{ }
	for i := range adds {
		for _, n := range parseSequenceFormatToken(adds[i]) {
			if m[n] {
				return nil, fmt.Errorf("The number %d is added more than once.", n)
			}
			m[n] = true
		}
	}

	for i := range subs {
		for _, n := range parseSequenceFormatToken(subs[i]) {
			if !m[n] {
				return nil, fmt.Errorf("The number %d is removed more times "+
					"than it was inserted.", n)
			}
			delete(m, n)
		}
	}

	out := make([]int, 0, len(m))
	for n := range m { out = append(out, n) }
	sort.Ints(out)

	return out, nil
}

// tokeniseSequenceFormat splits a sequence format into numbers, ranges, and
// operators.
func tokeniseSequenceFormat(format string) ([]string, error) {
	formatClean := strings.ReplaceAll(format, "+", " + ")
	formatClean = strings.ReplaceAll(formatClean, "-", " - ")

	tok := strings.Fields(formatClean)
	if len(tok) == 0 {
		return nil, fmt.Errorf("The format string is empty.")
	}
	return tok, nil
}

// addsSubsSequenceFormat sorts tokens into the ones which are added to the
// sequence and the ones which are removed from it. A leading token without an
// operator is added.
func addsSubsSequenceFormat(tok []string) (adds, subs []string, err error) {
	if len(tok) == 0 {
		return nil, nil, fmt.Errorf("Format string is empty")
	}

	adds, subs = []string{}, []string{}
	start := 0
	if tok[0] != "+" && tok[0] != "-" {
		if err := isSequenceFormatToken(tok[0]); err != nil {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', cannot be parsed because %s",
				1, tok[0], err.Error(),
			)
		}
		adds = append(adds, tok[0])
		start = 1
	}

	for i := start; i < len(tok); i += 2 {
		if tok[i] != "-" && tok[i] != "+" {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', should be a '-' or '+', but isn't.",
				i+1, tok[i])
		}

		if i + 1 >= len(tok) {
			return nil, nil, fmt.Errorf(
				"The format string ends in a trailing '%s'", tok[i],
			)
		}

		if err := isSequenceFormatToken(tok[i+1]); err != nil {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', cannot be parsed because %s",
				i+2, tok[i+1], err.Error(),
			)
		}

		if tok[i] == "+" {
			adds = append(adds, tok[i+1])
		} else {
			subs = append(subs, tok[i+1])
		}
	}

	return adds, subs, nil
}

// isSequenceFormatToken returns a nil error is tok is a valid token for
// a sequence format and an error describing the problem otherwise. The error
// message assumes it is printed after a trailing "because"
func isSequenceFormatToken(tok string) error {
	if len(tok) == 0 {
		return fmt.Errorf("the token is empty.")
	}

	bounds := strings.Split(tok, "..")

	switch len(bounds) {
	case 1:
		if _, err := strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("'%s' is not an integer.", bounds[0])
		}
		return nil
	case 2:
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return fmt.Errorf("'%s' is not an integer.", bounds[0])
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return fmt.Errorf("'%s' is not an integer.", bounds[1])
		}
		if end < start {
			return fmt.Errorf("lower bound %d is larger than upper bound %d.",
				start, end)
		}
		return nil
	}
	return fmt.Errorf("it has more than one '..'.")
}

// tokenLength returns the number of elements a valid token expands to.
func tokenLength(tok string) int {
	bounds := strings.Split(tok, "..")
	if len(bounds) == 1 { return 1 }
	start, _ := strconv.Atoi(bounds[0])
	end, _ := strconv.Atoi(bounds[1])
	return end - start + 1
}

// parseSequenceFormatToken parses a single token that has already passed
// isSequenceFormatToken and returns the corresponding array of numbers.
func parseSequenceFormatToken(tok string) []int {
	bounds := strings.Split(tok, "..")

	switch len(bounds) {
	case 1:
		n, _ := strconv.Atoi(tok)
		return []int{ n }
	case 2:
		start, _ := strconv.Atoi(bounds[0])
		end, _ := strconv.Atoi(bounds[1])
		out := make([]int, 0, end - start + 1)
		for n := start; n <= end; n++ {
			out = append(out, n)
		}
		return out
	}

	panic(fmt.Sprintf("Invalid sequence format token, '%s', passed "+
		"isSequenceFormatToken()", tok))
}
