package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Answer is one choice of a question. Tags is treated as a set.
type Answer struct {
	ID    int64   `json:"id,omitempty"`
	Text  string  `json:"text"`
	Order int     `json:"order"`
	Tags  []TagID `json:"tags"`
}

// Question is an ordered question with ordered answers. LocalID is a client-side
// placeholder used until the question receives a persisted ID.
type Question struct {
	ID      int64    `json:"id,omitempty"`
	LocalID string   `json:"localId,omitempty"`
	Text    string   `json:"text"`
	Order   int      `json:"order"`
	Tags    []TagID  `json:"tags,omitempty"`
	Answers []Answer `json:"answers"`
}

// Snapshot is the versioned unit of quiz content.
type Snapshot struct {
	Questions []Question `json:"questions"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Questions: make([]Question, len(s.Questions))}
	for i, q := range s.Questions {
		cq := q
		cq.Tags = append([]TagID(nil), q.Tags...)
		cq.Answers = make([]Answer, len(q.Answers))
		for j, a := range q.Answers {
			ca := a
			ca.Tags = append([]TagID(nil), a.Tags...)
			cq.Answers[j] = ca
		}
		out.Questions[i] = cq
	}
	return out
}

// Validate checks the content is eligible for saving: non-empty texts, at least one
// answer per question, dense 1-based orders and unique persisted ids.
func (s Snapshot) Validate() error {
	if err := checkOrders("questions", len(s.Questions), func(i int) int { return s.Questions[i].Order }); err != nil {
		return err
	}
	questionIDs := make(map[int64]struct{})
	answerIDs := make(map[int64]struct{})
	for i, q := range s.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(q.Text) == "" {
			return Invalid(field, "question text is required")
		}
		if q.ID < 0 {
			return Invalid(field, "negative id %d", q.ID)
		}
		if q.ID > 0 {
			if _, dup := questionIDs[q.ID]; dup {
				return Invalid(field, "duplicate question id %d", q.ID)
			}
			questionIDs[q.ID] = struct{}{}
		}
		if len(q.Answers) == 0 {
			return Invalid(field, "question has no answers")
		}
		if err := checkOrders(field+".answers", len(q.Answers), func(j int) int { return q.Answers[j].Order }); err != nil {
			return err
		}
		for j, a := range q.Answers {
			if strings.TrimSpace(a.Text) == "" {
				return Invalid(fmt.Sprintf("%s.answers[%d]", field, j), "answer text is required")
			}
			if a.ID < 0 {
				return Invalid(fmt.Sprintf("%s.answers[%d]", field, j), "negative id %d", a.ID)
			}
			if a.ID > 0 {
				if _, dup := answerIDs[a.ID]; dup {
					return Invalid(fmt.Sprintf("%s.answers[%d]", field, j), "duplicate answer id %d", a.ID)
				}
				answerIDs[a.ID] = struct{}{}
			}
		}
	}
	return nil
}

func checkOrders(field string, n int, orderAt func(int) int) error {
	seen := make([]bool, n+1)
	for i := 0; i < n; i++ {
		o := orderAt(i)
		if o < 1 || o > n {
			return Invalid(field, "order %d outside 1..%d", o, n)
		}
		if seen[o] {
			return Invalid(field, "duplicate order %d", o)
		}
		seen[o] = true
	}
	return nil
}

// Normalize sorts questions and answers by their order fields, de-duplicates tag
// sets, and assigns persisted ids to entries that lack one. Call after Validate.
func (s Snapshot) Normalize() Snapshot {
	out := s.Clone()
	sort.SliceStable(out.Questions, func(i, j int) bool { return out.Questions[i].Order < out.Questions[j].Order })

	var maxQ, maxA int64
	for _, q := range out.Questions {
		if q.ID > maxQ {
			maxQ = q.ID
		}
		for _, a := range q.Answers {
			if a.ID > maxA {
				maxA = a.ID
			}
		}
	}
	for i := range out.Questions {
		q := &out.Questions[i]
		if q.ID == 0 {
			maxQ++
			q.ID = maxQ
		}
		q.LocalID = ""
		q.Tags = dedupeTags(q.Tags)
		sort.SliceStable(q.Answers, func(a, b int) bool { return q.Answers[a].Order < q.Answers[b].Order })
		for j := range q.Answers {
			a := &q.Answers[j]
			if a.ID == 0 {
				maxA++
				a.ID = maxA
			}
			a.Tags = dedupeTags(a.Tags)
			if a.Tags == nil {
				a.Tags = []TagID{}
			}
		}
	}
	return out
}

// Renumber rewrites every order field to match array position.
func (s *Snapshot) Renumber() {
	for i := range s.Questions {
		s.Questions[i].Order = i + 1
		for j := range s.Questions[i].Answers {
			s.Questions[i].Answers[j].Order = j + 1
		}
	}
}

// AddQuestion appends a question and returns its index.
func (s *Snapshot) AddQuestion(q Question) int {
	s.Questions = append(s.Questions, q)
	s.Renumber()
	return len(s.Questions) - 1
}

// UpdateQuestion replaces the text of the question at idx.
func (s *Snapshot) UpdateQuestion(idx int, text string) error {
	if err := s.checkQuestion(idx); err != nil {
		return err
	}
	s.Questions[idx].Text = text
	return nil
}

// RemoveQuestion deletes the question at idx.
func (s *Snapshot) RemoveQuestion(idx int) error {
	if err := s.checkQuestion(idx); err != nil {
		return err
	}
	s.Questions = append(s.Questions[:idx], s.Questions[idx+1:]...)
	s.Renumber()
	return nil
}

// MoveQuestion moves the question at from to position to.
func (s *Snapshot) MoveQuestion(from, to int) error {
	if err := s.checkQuestion(from); err != nil {
		return err
	}
	if err := s.checkQuestion(to); err != nil {
		return err
	}
	q := s.Questions[from]
	s.Questions = append(s.Questions[:from], s.Questions[from+1:]...)
	s.Questions = append(s.Questions[:to], append([]Question{q}, s.Questions[to:]...)...)
	s.Renumber()
	return nil
}

// AddAnswer appends an answer to the question at qIdx and returns its index.
func (s *Snapshot) AddAnswer(qIdx int, a Answer) (int, error) {
	if err := s.checkQuestion(qIdx); err != nil {
		return 0, err
	}
	a.Tags = dedupeTags(a.Tags)
	s.Questions[qIdx].Answers = append(s.Questions[qIdx].Answers, a)
	s.Renumber()
	return len(s.Questions[qIdx].Answers) - 1, nil
}

// UpdateAnswer replaces text and tags of an answer.
func (s *Snapshot) UpdateAnswer(qIdx, aIdx int, text string, tags []TagID) error {
	if err := s.checkAnswer(qIdx, aIdx); err != nil {
		return err
	}
	a := &s.Questions[qIdx].Answers[aIdx]
	a.Text = text
	a.Tags = dedupeTags(tags)
	return nil
}

// RemoveAnswer deletes an answer.
func (s *Snapshot) RemoveAnswer(qIdx, aIdx int) error {
	if err := s.checkAnswer(qIdx, aIdx); err != nil {
		return err
	}
	answers := s.Questions[qIdx].Answers
	s.Questions[qIdx].Answers = append(answers[:aIdx], answers[aIdx+1:]...)
	s.Renumber()
	return nil
}

// MoveAnswer moves an answer within its question.
func (s *Snapshot) MoveAnswer(qIdx, from, to int) error {
	if err := s.checkAnswer(qIdx, from); err != nil {
		return err
	}
	if err := s.checkAnswer(qIdx, to); err != nil {
		return err
	}
	answers := s.Questions[qIdx].Answers
	a := answers[from]
	answers = append(answers[:from], answers[from+1:]...)
	answers = append(answers[:to], append([]Answer{a}, answers[to:]...)...)
	s.Questions[qIdx].Answers = answers
	s.Renumber()
	return nil
}

// RemoveTag strips tagID from every question and answer tag set and reports
// whether anything changed. Removing an absent tag is a no-op.
func (s *Snapshot) RemoveTag(tagID TagID) bool {
	changed := false
	for i := range s.Questions {
		q := &s.Questions[i]
		if tags, ok := without(q.Tags, tagID); ok {
			q.Tags = tags
			changed = true
		}
		for j := range q.Answers {
			if tags, ok := without(q.Answers[j].Tags, tagID); ok {
				q.Answers[j].Tags = tags
				changed = true
			}
		}
	}
	return changed
}

// TagRefs lists the questions and answers referencing tagID.
func (s Snapshot) TagRefs(tagID TagID) ([]QuestionRef, []AnswerRef) {
	var questions []QuestionRef
	var answers []AnswerRef
	for i, q := range s.Questions {
		if hasTag(q.Tags, tagID) {
			questions = append(questions, QuestionRef{QIdx: i, Text: q.Text})
		}
		for j, a := range q.Answers {
			if hasTag(a.Tags, tagID) {
				answers = append(answers, AnswerRef{QIdx: i, AIdx: j, QText: q.Text, AText: a.Text})
			}
		}
	}
	return questions, answers
}

// UntaggedAnswers returns the (question, answer) indexes of answers carrying no tags.
// Such answers are allowed but contribute nothing to matching.
func (s Snapshot) UntaggedAnswers() [][2]int {
	var out [][2]int
	for i, q := range s.Questions {
		for j, a := range q.Answers {
			if len(a.Tags) == 0 {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

// FindAnswer returns the answer with the given persisted id.
func (s Snapshot) FindAnswer(id int64) (Answer, bool) {
	for _, q := range s.Questions {
		for _, a := range q.Answers {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Answer{}, false
}

func (s *Snapshot) checkQuestion(idx int) error {
	if idx < 0 || idx >= len(s.Questions) {
		return Invalid("question", "index %d out of range", idx)
	}
	return nil
}

func (s *Snapshot) checkAnswer(qIdx, aIdx int) error {
	if err := s.checkQuestion(qIdx); err != nil {
		return err
	}
	if aIdx < 0 || aIdx >= len(s.Questions[qIdx].Answers) {
		return Invalid("answer", "index %d out of range", aIdx)
	}
	return nil
}

func dedupeTags(tags []TagID) []TagID {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[TagID]struct{}, len(tags))
	out := make([]TagID, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func hasTag(tags []TagID, id TagID) bool {
	for _, t := range tags {
		if t == id {
			return true
		}
	}
	return false
}

func without(tags []TagID, id TagID) ([]TagID, bool) {
	if !hasTag(tags, id) {
		return tags, false
	}
	out := make([]TagID, 0, len(tags)-1)
	for _, t := range tags {
		if t != id {
			out = append(out, t)
		}
	}
	return out, true
}

// AnswerOf reports whether answerID belongs to the question with questionID.
func (s Snapshot) AnswerOf(questionID, answerID int64) bool {
	for _, q := range s.Questions {
		if q.ID != questionID {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == answerID {
				return true
			}
		}
	}
	return false
}
