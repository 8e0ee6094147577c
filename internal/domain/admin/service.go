package admin

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// UpdateSettings applies the patch to the stored settings. The SMTP password
// is only replaced when the patch carries a non-empty value.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (*Settings, error) {
	cur, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if patch.SMTPHost != nil {
		cur.SMTPHost = *patch.SMTPHost
	}
	if patch.SMTPPort != nil {
		if *patch.SMTPPort <= 0 || *patch.SMTPPort > 65535 {
			return nil, fmt.Errorf("invalid smtp_port: %d", *patch.SMTPPort)
		}
		cur.SMTPPort = *patch.SMTPPort
	}
	if patch.SMTPUsername != nil {
		cur.SMTPUsername = *patch.SMTPUsername
	}
	if patch.SMTPPassword != nil && *patch.SMTPPassword != "" {
		cur.SMTPPassword = *patch.SMTPPassword
	}
	if patch.FromAddress != nil {
		cur.FromAddress = *patch.FromAddress
	}
	if patch.NotifyOnConfirm != nil {
		cur.NotifyOnConfirm = *patch.NotifyOnConfirm
	}
	if err := s.repo.Save(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}
