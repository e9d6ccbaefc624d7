package service

import (
	"context"
	"fmt"
	"io"

	"clinicdesk/internal/domain"
)

// Dictator turns recorded audio into a structured prescription draft.
type Dictator interface {
	Dictate(ctx context.Context, filename string, audio io.Reader) (domain.Prescription, error)
}

// DictatePrescription returns a draft only; nothing is saved.
func (s *Service) DictatePrescription(ctx context.Context, filename string, audio io.Reader) (domain.Prescription, error) {
	if s.dictator == nil {
		return domain.Prescription{}, domain.ErrUnavailable
	}
	draft, err := s.dictator.Dictate(ctx, filename, audio)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("dictate prescription: %w", err)
	}
	if draft.Medicines == nil {
		draft.Medicines = []domain.Medicine{}
	}
	if draft.Photos == nil {
		draft.Photos = []string{}
	}
	if err := draft.Validate(); err != nil {
		return domain.Prescription{}, err
	}
	return draft, nil
}
