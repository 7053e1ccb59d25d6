package domain

import "bytes"

// Equal reports structural equality: same questions and answers with equal text and
// order, and equal tag sets. Tag order and duplicates are ignored; ids are not compared.
func Equal(a, b Snapshot) bool {
	if len(a.Questions) != len(b.Questions) {
		return false
	}
	for i := range a.Questions {
		qa, qb := a.Questions[i], b.Questions[i]
		if qa.Text != qb.Text || qa.Order != qb.Order || !sameTagSet(qa.Tags, qb.Tags) {
			return false
		}
		if len(qa.Answers) != len(qb.Answers) {
			return false
		}
		for j := range qa.Answers {
			aa, ab := qa.Answers[j], qb.Answers[j]
			if aa.Text != ab.Text || aa.Order != ab.Order || !sameTagSet(aa.Tags, ab.Tags) {
				return false
			}
		}
	}
	return true
}

// SameEncoding compares the serialized forms. Only meaningful when both sides come
// from the same save cycle, since it is sensitive to tag order.
func SameEncoding(a, b Snapshot) bool {
	ea, err := EncodeSnapshot(a)
	if err != nil {
		return false
	}
	eb, err := EncodeSnapshot(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func sameTagSet(a, b []TagID) bool {
	sa := make(map[TagID]struct{}, len(a))
	for _, t := range a {
		sa[t] = struct{}{}
	}
	sb := make(map[TagID]struct{}, len(b))
	for _, t := range b {
		sb[t] = struct{}{}
	}
	if len(sa) != len(sb) {
		return false
	}
	for t := range sa {
		if _, ok := sb[t]; !ok {
			return false
		}
	}
	return true
}
