package postgres

import "github.com/fastygo/taskpulse/domain"

func priorityArg(p *domain.Priority) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}

func statusArg(s *domain.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func nonNilSubtasks(in []domain.Subtask) []domain.Subtask {
	if in == nil {
		return []domain.Subtask{}
	}
	return in
}
