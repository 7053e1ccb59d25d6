package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeKeepsExplicitOrder(t *testing.T) {
	s := sampleSnapshot()
	s.Questions[0].Order, s.Questions[1].Order = 2, 1

	raw, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(raw), `"version":1`) {
		t.Fatalf("expected version marker, got %s", raw)
	}
	decoded, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Questions[0].Order != 2 || decoded.Questions[1].Order != 1 {
		t.Fatalf("order fields not preserved: %+v", decoded.Questions)
	}
	if !Equal(s, decoded) {
		t.Fatalf("decoded snapshot differs")
	}
}

func TestDecodeMigratesLegacyTagPoints(t *testing.T) {
	raw := []byte(`{"questions":[{"id":3,"question":"Jakie są Twoje główne problemy?","order":1,
		"answers":[
			{"id":10,"answer":"Lęk i niepokój","order":1,"tagPoints":{"1":80,"7":0}},
			{"id":11,"answer":"Depresja","order":2,"tagPoints":{"2":80}}
		]}]}`)
	s, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if len(s.Questions) != 1 || s.Questions[0].Text != "Jakie są Twoje główne problemy?" {
		t.Fatalf("unexpected questions %+v", s.Questions)
	}
	answers := s.Questions[0].Answers
	if answers[0].Text != "Lęk i niepokój" || len(answers[0].Tags) != 1 || answers[0].Tags[0] != 1 {
		t.Fatalf("unexpected first answer %+v", answers[0])
	}
	if answers[1].ID != 11 || answers[1].Tags[0] != 2 {
		t.Fatalf("unexpected second answer %+v", answers[1])
	}
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"version":99,"questions":[]}`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
