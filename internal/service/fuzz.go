package service

import (
	"fmt"
	"math"
	"regexp/syntax"
)

// RuleEnumerator expands a regular-expression rule into every string it
// matches. Unbounded repetitions (*, +, {n,}) are capped at RepeatLimit
// instead of looping forever.
type RuleEnumerator struct {
	RepeatLimit int
}

func NewRuleEnumerator(repeatLimit int) *RuleEnumerator {
	if repeatLimit < 1 {
		repeatLimit = 10
	}
	return &RuleEnumerator{RepeatLimit: repeatLimit}
}

// Count computes the rule's theoretical cardinality, saturating at MaxUint64.
func (e *RuleEnumerator) Count(rule string) (uint64, error) {
	re, err := syntax.Parse(rule, syntax.Perl)
	if err != nil {
		return 0, fmt.Errorf("parsing fuzz rule %q: %w", rule, err)
	}
	return e.count(re)
}

// Enumerate generates every matching string and hands it to emit.
func (e *RuleEnumerator) Enumerate(rule string, emit func(string)) error {
	re, err := syntax.Parse(rule, syntax.Perl)
	if err != nil {
		return fmt.Errorf("parsing fuzz rule %q: %w", rule, err)
	}
	return e.walk([]*syntax.Regexp{re}, "", emit)
}

func (e *RuleEnumerator) count(re *syntax.Regexp) (uint64, error) {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpBeginLine, syntax.OpEndLine, syntax.OpLiteral:
		return 1, nil
	case syntax.OpCharClass:
		var total uint64
		for i := 0; i < len(re.Rune); i += 2 {
			total = addSat(total, uint64(re.Rune[i+1]-re.Rune[i])+1)
		}
		return total, nil
	case syntax.OpCapture:
		return e.count(re.Sub[0])
	case syntax.OpConcat:
		total := uint64(1)
		for _, sub := range re.Sub {
			n, err := e.count(sub)
			if err != nil {
				return 0, err
			}
			total = mulSat(total, n)
		}
		return total, nil
	case syntax.OpAlternate:
		var total uint64
		for _, sub := range re.Sub {
			n, err := e.count(sub)
			if err != nil {
				return 0, err
			}
			total = addSat(total, n)
		}
		return total, nil
	case syntax.OpQuest, syntax.OpStar, syntax.OpPlus, syntax.OpRepeat:
		n, err := e.count(re.Sub[0])
		if err != nil {
			return 0, err
		}
		lo, hi := e.repeatBounds(re)
		var total uint64
		for k := lo; k <= hi; k++ {
			total = addSat(total, powSat(n, k))
		}
		return total, nil
	}
	return 0, fmt.Errorf("fuzz rule operator %v is not enumerable", re.Op)
}

func (e *RuleEnumerator) walk(seq []*syntax.Regexp, prefix string, emit func(string)) error {
	if len(seq) == 0 {
		emit(prefix)
		return nil
	}
	head, tail := seq[0], seq[1:]
	switch head.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpBeginLine, syntax.OpEndLine:
		return e.walk(tail, prefix, emit)
	case syntax.OpLiteral:
		return e.walk(tail, prefix+string(head.Rune), emit)
	case syntax.OpCharClass:
		for i := 0; i < len(head.Rune); i += 2 {
			for r := head.Rune[i]; r <= head.Rune[i+1]; r++ {
				if err := e.walk(tail, prefix+string(r), emit); err != nil {
					return err
				}
			}
		}
		return nil
	case syntax.OpCapture:
		return e.walk(prepend(head.Sub[0], tail), prefix, emit)
	case syntax.OpConcat:
		seq2 := make([]*syntax.Regexp, 0, len(head.Sub)+len(tail))
		seq2 = append(seq2, head.Sub...)
		seq2 = append(seq2, tail...)
		return e.walk(seq2, prefix, emit)
	case syntax.OpAlternate:
		for _, sub := range head.Sub {
			if err := e.walk(prepend(sub, tail), prefix, emit); err != nil {
				return err
			}
		}
		return nil
	case syntax.OpQuest, syntax.OpStar, syntax.OpPlus, syntax.OpRepeat:
		lo, hi := e.repeatBounds(head)
		for k := lo; k <= hi; k++ {
			seq2 := make([]*syntax.Regexp, 0, int(k)+len(tail))
			for i := uint64(0); i < k; i++ {
				seq2 = append(seq2, head.Sub[0])
			}
			seq2 = append(seq2, tail...)
			if err := e.walk(seq2, prefix, emit); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("fuzz rule operator %v is not enumerable", head.Op)
}

func (e *RuleEnumerator) repeatBounds(re *syntax.Regexp) (uint64, uint64) {
	limit := uint64(e.RepeatLimit)
	switch re.Op {
	case syntax.OpQuest:
		return 0, 1
	case syntax.OpStar:
		return 0, limit
	case syntax.OpPlus:
		return 1, limit
	default: // OpRepeat
		lo := uint64(re.Min)
		if re.Max < 0 {
			return lo, maxU64(lo, limit)
		}
		return lo, uint64(re.Max)
	}
}

func prepend(head *syntax.Regexp, tail []*syntax.Regexp) []*syntax.Regexp {
	seq := make([]*syntax.Regexp, 0, 1+len(tail))
	seq = append(seq, head)
	return append(seq, tail...)
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func mulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func powSat(n, k uint64) uint64 {
	total := uint64(1)
	for i := uint64(0); i < k; i++ {
		total = mulSat(total, n)
	}
	return total
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
