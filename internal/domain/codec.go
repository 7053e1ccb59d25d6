package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// SnapshotVersion is the version written by EncodeSnapshot.
const SnapshotVersion = 1

type envelope struct {
	Version int `json:"version"`
}

type storedSnapshot struct {
	Version   int        `json:"version"`
	Questions []Question `json:"questions"`
}

// migrations[v] upgrades a document from version v to v+1.
var migrations = map[int]func([]byte) ([]byte, error){
	0: migrateV0,
}

// EncodeSnapshot serializes content in the current persisted layout. Order fields are
// written explicitly and never inferred from array position.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	questions := s.Questions
	if questions == nil {
		questions = []Question{}
	}
	return json.Marshal(storedSnapshot{Version: SnapshotVersion, Questions: questions})
}

// DecodeSnapshot reads any known persisted layout, migrating older versions step by step.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version > SnapshotVersion || env.Version < 0 {
		return Snapshot{}, Invalid("version", "unsupported snapshot version %d", env.Version)
	}
	data := raw
	for v := env.Version; v < SnapshotVersion; v++ {
		migrate, ok := migrations[v]
		if !ok {
			return Snapshot{}, Invalid("version", "no migration from version %d", v)
		}
		next, err := migrate(data)
		if err != nil {
			return Snapshot{}, fmt.Errorf("migrate snapshot v%d: %w", v, err)
		}
		data = next
	}
	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return Snapshot{Questions: stored.Questions}, nil
}

// Version 0 is the unversioned layout where texts lived under "question"/"answer"
// and answers carried a tag id -> points map.
type legacyAnswer struct {
	ID        int64          `json:"id"`
	Answer    string         `json:"answer"`
	Text      string         `json:"text"`
	Order     int            `json:"order"`
	TagPoints map[string]int `json:"tagPoints"`
	Tags      []TagID        `json:"tags"`
}

type legacyQuestion struct {
	ID       int64          `json:"id"`
	LocalID  string         `json:"localId"`
	Question string         `json:"question"`
	Text     string         `json:"text"`
	Order    int            `json:"order"`
	Tags     []TagID        `json:"tags"`
	Answers  []legacyAnswer `json:"answers"`
}

type legacySnapshot struct {
	Questions []legacyQuestion `json:"questions"`
}

func migrateV0(raw []byte) ([]byte, error) {
	var legacy legacySnapshot
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	out := storedSnapshot{Version: 1, Questions: make([]Question, 0, len(legacy.Questions))}
	for _, lq := range legacy.Questions {
		q := Question{
			ID:      lq.ID,
			LocalID: lq.LocalID,
			Text:    firstNonEmpty(lq.Text, lq.Question),
			Order:   lq.Order,
			Tags:    lq.Tags,
			Answers: make([]Answer, 0, len(lq.Answers)),
		}
		for _, la := range lq.Answers {
			tags := append([]TagID(nil), la.Tags...)
			tags = append(tags, tagsFromPoints(la.TagPoints)...)
			q.Answers = append(q.Answers, Answer{
				ID:    la.ID,
				Text:  firstNonEmpty(la.Text, la.Answer),
				Order: la.Order,
				Tags:  dedupeTags(tags),
			})
		}
		out.Questions = append(out.Questions, q)
	}
	return json.Marshal(out)
}

// tagsFromPoints collapses weights to membership: any positive weight keeps the tag.
func tagsFromPoints(points map[string]int) []TagID {
	tags := make([]TagID, 0, len(points))
	for key, p := range points {
		if p <= 0 {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		tags = append(tags, TagID(id))
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
